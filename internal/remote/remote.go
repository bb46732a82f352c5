// Package remote abstracts remote command execution behind an Executor
// capability so the invocation ordering and argument construction can be
// verified without real network access.
package remote

import (
	"context"
	"sync"
	"time"

	"skillsync/internal/config"
)

// Result is the outcome of one remote command
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// OK checks if the command exited successfully
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Executor runs a command on a remote target and reports its exit status.
// An error is returned only for transport-level failures; a non-zero exit
// from the remote command is reported through Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, target config.Target, command string) (*Result, error)
}

// Invocation records one command sent to a target
type Invocation struct {
	Target  config.Target
	Command string
}

// Recorder is an Executor that records every invocation instead of opening
// a session. Exit codes and transport errors can be scripted per target.
type Recorder struct {
	mu          sync.Mutex
	invocations []Invocation

	// ExitCodes maps target name to the exit code Run reports for it.
	// Targets not present exit 0.
	ExitCodes map[string]int

	// Errs maps target name to a transport-level error Run returns for it
	Errs map[string]error
}

// NewRecorder creates a recording executor
func NewRecorder() *Recorder {
	return &Recorder{
		ExitCodes: make(map[string]int),
		Errs:      make(map[string]error),
	}
}

// Run records the invocation and reports the scripted outcome
func (r *Recorder) Run(ctx context.Context, target config.Target, command string) (*Result, error) {
	r.mu.Lock()
	r.invocations = append(r.invocations, Invocation{Target: target, Command: command})
	r.mu.Unlock()

	if err := r.Errs[target.Name]; err != nil {
		return nil, err
	}

	return &Result{ExitCode: r.ExitCodes[target.Name]}, nil
}

// Invocations returns a copy of everything recorded so far, in order
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}
