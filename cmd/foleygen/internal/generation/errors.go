// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Per-request error types
// -----------------------------------------------------------------------------

// ValidationError rejects a request before any process is spawned.
type ValidationError struct {
	Field string // JSON name, e.g. "durationSeconds"
	Rule  string // validator tag that failed
	Param string
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Rule {
	case "notblank", "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got %v)", e.Field, e.Param, e.Value)
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got %v)", e.Field, e.Param, e.Value)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s (got %q)", e.Field, strings.ReplaceAll(e.Param, " ", ", "), e.Value)
	default:
		return fmt.Sprintf("%s is invalid (%s): %v", e.Field, e.Rule, e.Value)
	}
}

// ProcessTimeoutError means the tool was killed after Timeout.
type ProcessTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *ProcessTimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %s", e.Timeout)
}

// ProcessExecutionError means the tool exited non-zero or never started.
type ProcessExecutionError struct {
	ExitCode int    // -1 for launch failures and signals
	Stderr   string // tail of the error stream
	Err      error
}

// Error implements the error interface.
func (e *ProcessExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("generation failed (exit %d): %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("generation failed (exit %d): %v", e.ExitCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessExecutionError) Unwrap() error {
	return e.Err
}

// ArtifactMissingError means the tool exited 0 but outputs are absent.
type ArtifactMissingError struct {
	Paths []string
}

// Error implements the error interface.
func (e *ArtifactMissingError) Error() string {
	return "expected output not found: " + strings.Join(e.Paths, ", ")
}

var (
	_ error = (*ValidationError)(nil)
	_ error = (*ProcessTimeoutError)(nil)
	_ error = (*ProcessExecutionError)(nil)
	_ error = (*ArtifactMissingError)(nil)
)
