// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps a subprocess failure with its stderr.
//
// # Description
//
// Produced by the process manager whenever a command exits non-zero or
// cannot be started. The accelerator check and installer callers only log it; the
// generation orchestrator extracts Stderr for its failure message.
//
// # Examples
//
//	err := NewCommandError("nvidia-smi", 9, "NVIDIA-SMI has failed", nil)
//	fmt.Println(err) // "nvidia-smi (exit 9): NVIDIA-SMI has failed"
//
// # Limitations
//
//   - Stderr is whatever the caller captured, usually a bounded tail
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the process never exited).
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error formats "<command> (exit N): <stderr or wrapped>".
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// HasStderr reports whether any stderr was captured.
func (e *CommandError) HasStderr() bool {
	return e.Stderr != ""
}

var _ error = (*CommandError)(nil)

// NewCommandError creates a CommandError, trimming stderr.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// ExtractStderr returns the first non-empty stderr found in err's chain.
//
// # Description
//
// Walks the chain with errors.As so a CommandError wrapped by fmt.Errorf
// is still found.
//
// # Outputs
//
//   - string: Stderr content, or "" when the chain has none
func ExtractStderr(err error) string {
	var cmdErr *CommandError
	for err != nil {
		if !errors.As(err, &cmdErr) {
			return ""
		}
		if cmdErr.HasStderr() {
			return cmdErr.Stderr
		}
		err = cmdErr.Wrapped
	}
	return ""
}

// ExitCodeOf returns the exit code recorded in err's chain, or -1.
func ExitCodeOf(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}
