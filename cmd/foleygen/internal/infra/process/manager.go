// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package process abstracts external process execution.

Every subprocess foleygen starts goes through Manager: the accelerator
check, the fast path wheel install and the generation tool itself. Tests
swap in MockManager, or point the real Manager at small shell scripts.

# Process Groups

Exec starts the child in its own process group. When the context is done
the whole group receives SIGKILL, so helper processes forked by the
generation tool (data loaders, ffmpeg) die with it. WaitDelay bounds how
long Wait may block on pipes held open by a grandchild that escaped.
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Manager interface {
	// Run executes a command and returns its stdout.
	//
	// # Description
	//
	// Waits for completion. A non-zero exit or launch failure returns a
	// *util.CommandError that carries the trimmed stderr.
	//
	// # Inputs
	//
	//   - ctx: Cancels the command (plain kill, no process group)
	//   - name: Executable name or path
	//   - args: Command arguments
	//
	// # Outputs
	//
	//   - []byte: Stdout
	//   - error: *util.CommandError on failure
	//
	// # Examples
	//
	//	out, err := pm.Run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Exec runs a long-lived command described by spec.
	//
	// # Description
	//
	// Applies spec.Dir, spec.Env and spec.Timeout, keeps only a bounded tail
	// of stdout and stderr, and kills the process group on timeout or
	// cancellation.
	//
	// # Outputs
	//
	//   - *Outcome: Non-nil whenever the process was started
	//   - error: nil only on exit code 0. A launch failure returns a nil
	//     Outcome and a *util.CommandError with ExitCode -1.
	//
	// # Examples
	//
	//	out, err := pm.Exec(ctx, process.Spec{
	//	    Name:    "python3",
	//	    Args:    []string{"gradio_app.py", "--prompt", "rain"},
	//	    Dir:     "/app/HunyuanVideo-Foley",
	//	    Timeout: 300 * time.Second,
	//	})
	//	if out != nil && out.TimedOut {
	//	    // classify as timeout
	//	}
	Exec(ctx context.Context, spec Spec) (*Outcome, error)

	// LookPath resolves an executable the way exec.LookPath does.
	LookPath(name string) (string, error)
}

// Spec describes one Exec invocation.
type Spec struct {
	// Name is the executable.
	Name string

	// Args are passed verbatim. No shell is involved.
	Args []string

	// Dir is the child's working directory. Empty inherits ours.
	Dir string

	// Env is appended to os.Environ().
	Env []string

	// Timeout bounds the run. Zero means only ctx bounds it.
	Timeout time.Duration

	// TailSize is the stdout/stderr tail kept. Zero uses util.DefaultTailSize.
	TailSize int

	// WaitDelay overrides util.DefaultWaitDelay.
	WaitDelay time.Duration
}

// CommandLine renders the spec for logs.
func (s Spec) CommandLine() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Outcome describes a finished Exec.
type Outcome struct {
	// ExitCode is the exit status, -1 when killed by a signal.
	ExitCode int

	// Stdout and Stderr hold the last TailSize bytes of each stream.
	Stdout string
	Stderr string

	// TimedOut is set when Spec.Timeout elapsed.
	TimedOut bool

	// Canceled is set when the caller's context ended first.
	Canceled bool

	// Duration is wall-clock time from start to exit.
	Duration time.Duration
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
type DefaultManager struct{}

// NewDefaultManager creates a DefaultManager.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its output.
func (m *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, util.NewCommandError(Spec{Name: name, Args: args}.CommandLine(), exitCode(err), stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// Exec runs spec in its own process group under an optional timeout.
func (m *DefaultManager) Exec(ctx context.Context, spec Spec) (*Outcome, error) {
	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.WaitDelay = util.EnforceDefaultTimeout(spec.WaitDelay, util.DefaultWaitDelay)
	setProcessGroup(cmd)

	stdout := util.NewTailBuffer(spec.TailSize)
	stderr := util.NewTailBuffer(spec.TailSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, util.NewCommandError(spec.CommandLine(), -1, "", fmt.Errorf("start: %w", err))
	}
	waitErr := cmd.Wait()

	out := &Outcome{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		// The parent context decides which of the two it was.
		out.Canceled = ctx.Err() != nil
		out.TimedOut = !out.Canceled && errors.Is(ctxErr, context.DeadlineExceeded)
	}

	if waitErr != nil {
		return out, util.NewCommandError(spec.CommandLine(), out.ExitCode, out.Stderr, waitErr)
	}
	return out, nil
}

// LookPath resolves an executable on PATH.
func (m *DefaultManager) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Compile-time interface compliance check.
var _ Manager = (*DefaultManager)(nil)
