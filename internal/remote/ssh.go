package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"skillsync/internal/config"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHExecutor runs commands over SSH with public key authentication.
// One connection is opened per invocation and closed when it completes;
// the batch load runs rarely enough that connection reuse buys nothing.
type SSHExecutor struct {
	// ConnectTimeout bounds the TCP dial and SSH handshake
	ConnectTimeout time.Duration

	// CommandTimeout bounds the remote command. Zero means no timeout.
	CommandTimeout time.Duration
}

// NewSSHExecutor creates an SSH executor with timeouts in seconds,
// matching the pipeline configuration fields.
func NewSSHExecutor(connectTimeout, commandTimeout int) *SSHExecutor {
	return &SSHExecutor{
		ConnectTimeout: time.Duration(connectTimeout) * time.Second,
		CommandTimeout: time.Duration(commandTimeout) * time.Second,
	}
}

// Run opens a session to user@host and executes the command, capturing
// combined output and the remote exit status.
func (e *SSHExecutor) Run(ctx context.Context, target config.Target, command string) (*Result, error) {
	cfg, err := e.clientConfig(target)
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", target.Addr(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target.Addr(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	if e.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.CommandTimeout)
		defer cancel()
	}

	// Closing the client unblocks CombinedOutput when the context ends
	watchdog := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-watchdog:
		}
	}()

	start := time.Now()
	output, err := session.CombinedOutput(command)
	close(watchdog)

	result := &Result{
		Output:   output,
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("remote command interrupted: %w", ctxErr)
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			// Remote command ran and exited non-zero
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("remote command failed: %w", err)
	}

	return result, nil
}

// clientConfig builds an ssh.ClientConfig from the target's identity file.
// When no known_hosts file is configured, host keys are not verified, which
// mirrors the key-based trust the original remote transport assumed.
func (e *SSHExecutor) clientConfig(target config.Target) (*ssh.ClientConfig, error) {
	keyPath, err := expandHome(target.IdentityFile)
	if err != nil {
		return nil, err
	}
	if keyPath == "" {
		keyPath, err = expandHome("~/.ssh/id_rsa")
		if err != nil {
			return nil, err
		}
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key %s: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %w", keyPath, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if target.KnownHostsFile != "" {
		knownHostsPath, err := expandHome(target.KnownHostsFile)
		if err != nil {
			return nil, err
		}
		hostKeyCallback, err = knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("unable to load known_hosts %s: %w", knownHostsPath, err)
		}
	}

	return &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         e.ConnectTimeout,
	}, nil
}

// expandHome resolves a leading ~ to the user's home directory
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
