// Package invoker implements the branch-gated remote invocation of the
// skill-data load script. A run is gated on exact equality between the
// branch under build and the pipeline's trigger branch; when the gate
// passes, the load command runs on every configured target in order.
package invoker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"skillsync/internal/config"
	"skillsync/internal/remote"
	"skillsync/internal/security"

	"github.com/kballard/go-shellquote"
)

// SSHTransportExit is reported for a target whose session could not be
// opened or was torn down before the remote command exited, matching the
// exit code the ssh client itself uses for transport failures.
const SSHTransportExit = 255

// TargetResult is the outcome of one target invocation
type TargetResult struct {
	Target   config.Target
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
	Err      error
}

// OK checks if the invocation succeeded
func (r *TargetResult) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Report is the result of one gated run
type Report struct {
	Pipeline string
	Branch   string
	Skipped  bool
	Targets  []TargetResult

	// ExitCode is the exit status of the last target attempted, or zero
	// for a skipped run. Earlier failures do not change it.
	ExitCode int
}

// Failed reports whether any attempted target failed. The surrounding
// build system should mark the run failed when this is true, even though
// ExitCode only carries the last target's status.
func (r *Report) Failed() bool {
	for i := range r.Targets {
		if !r.Targets[i].OK() {
			return true
		}
	}
	return false
}

// Invoker runs a pipeline's load command against its targets
type Invoker struct {
	Pipeline *config.Pipeline
	Executor remote.Executor
	Logger   *slog.Logger
}

// New creates an invoker for a pipeline
func New(pipeline *config.Pipeline, executor remote.Executor, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		Pipeline: pipeline,
		Executor: executor,
		Logger:   logger,
	}
}

// RemoteCommand composes the command line sent to every target:
// change into the working directory, then run the configured invocation
// with the pipeline's core version appended.
func (inv *Invoker) RemoteCommand() string {
	args := make([]string, 0, len(inv.Pipeline.Invocation)+2)
	args = append(args, inv.Pipeline.Invocation...)
	args = append(args, "--core-version", inv.Pipeline.CoreVersion)
	return fmt.Sprintf("cd %s && %s",
		shellquote.Join(inv.Pipeline.WorkingDir), shellquote.Join(args...))
}

// Run evaluates the branch gate and, when it passes, runs the load command
// on each target in configured order. A mismatched branch is a no-op that
// returns a successful skipped report.
//
// Targets are deliberately not short-circuited: a failure on the test host
// does not keep the production host from being attempted, and the report's
// exit code is the last target's. Callers that need an aggregate signal
// check Report.Failed.
func (inv *Invoker) Run(ctx context.Context, currentBranch string) (*Report, error) {
	if err := security.ValidateBranchName(currentBranch); err != nil {
		return nil, fmt.Errorf("invalid branch name: %w", err)
	}

	report := &Report{
		Pipeline: inv.Pipeline.Name,
		Branch:   currentBranch,
	}

	if !inv.Pipeline.Matches(currentBranch) {
		inv.Logger.Info("branch gate not matched, skipping",
			"pipeline", inv.Pipeline.Name,
			"branch", currentBranch,
			"trigger_branch", inv.Pipeline.TriggerBranch)
		report.Skipped = true
		return report, nil
	}

	command := inv.RemoteCommand()

	for _, target := range inv.Pipeline.Targets {
		inv.Logger.Info("invoking load script",
			"pipeline", inv.Pipeline.Name,
			"target", target.String(),
			"command", command)

		tr := TargetResult{Target: target, Command: command}

		result, err := inv.Executor.Run(ctx, target, command)
		if result != nil {
			tr.ExitCode = result.ExitCode
			tr.Output = string(result.Output)
			tr.Duration = result.Duration
		}
		if err != nil {
			tr.Err = err
			tr.ExitCode = SSHTransportExit
			inv.Logger.Error("load script invocation failed",
				"pipeline", inv.Pipeline.Name,
				"target", target.String(),
				"error", err)
		} else if tr.ExitCode != 0 {
			inv.Logger.Error("load script exited non-zero",
				"pipeline", inv.Pipeline.Name,
				"target", target.String(),
				"exit_code", tr.ExitCode)
		} else {
			inv.Logger.Info("load script completed",
				"pipeline", inv.Pipeline.Name,
				"target", target.String(),
				"duration_ms", tr.Duration.Milliseconds())
		}

		report.Targets = append(report.Targets, tr)
		report.ExitCode = tr.ExitCode
	}

	return report, nil
}
