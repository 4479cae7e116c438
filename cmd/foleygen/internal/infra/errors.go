// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package infra

import (
	"bytes"
	"fmt"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// MissingModelError means the model root holds no provisioned weights.
//
// Fatal at startup: no generation request may proceed.
type MissingModelError struct {
	Path   string
	Reason string // "does not exist", "is not a directory", ...
}

// Error implements the error interface.
func (e *MissingModelError) Error() string {
	return fmt.Sprintf("model path %s %s", e.Path, e.Reason)
}

// Remediation tells the operator how to fix it.
func (e *MissingModelError) Remediation() string {
	return "Run `foleygen setup` to download the model, or point MODEL_PATH at an existing snapshot."
}

// MissingToolError means the generation tool installation is absent.
type MissingToolError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *MissingToolError) Error() string {
	return fmt.Sprintf("HunyuanVideo-Foley not found at %s (%s)", e.Path, e.Reason)
}

// Remediation tells the operator how to fix it.
func (e *MissingToolError) Remediation() string {
	return "Clone the HunyuanVideo-Foley repository into the tool directory, or set FOLEY_TOOL_DIR."
}

// FullError renders err with its remediation when it has one.
func FullError(err error) string {
	var buf bytes.Buffer
	buf.WriteString(err.Error())
	if r, ok := err.(interface{ Remediation() string }); ok {
		buf.WriteString("\n\nTo fix:\n  ")
		buf.WriteString(r.Remediation())
	}
	return buf.String()
}

var (
	_ error = (*MissingModelError)(nil)
	_ error = (*MissingToolError)(nil)
)
