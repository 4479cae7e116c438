// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import "errors"

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // startup prerequisites or a failed generation
	ExitUsage   = 2 // bad arguments or a failed setup
)

// exitError carries an exit code through cobra's RunE.
type exitError struct {
	code     int
	err      error
	reported bool // already shown to the user
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// withExit tags err with an exit code. A nil err stays nil.
func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// reported is withExit for errors the command already printed.
func reported(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err, reported: true}
}

func isReported(err error) bool {
	var e *exitError
	return errors.As(err, &e) && e.reported
}

// exitCode maps err to a process exit code. Untagged errors come from
// flag parsing and argument validation.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return ExitUsage
}
