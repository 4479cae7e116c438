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

import "time"

// Kind classifies a Result. The set is closed.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindValidation      Kind = "validation"
	KindTimeout         Kind = "timeout"
	KindExecution       Kind = "execution"
	KindArtifactMissing Kind = "artifact_missing"
	KindInternal        Kind = "internal"
)

// SuccessMessage is the Message of every successful Result.
const SuccessMessage = "Generation successful!"

// Result is the outcome of one Generate call.
//
// Artifact paths are set only for files that existed when the Result was
// built. With Kind KindArtifactMissing, Success is true unless the
// orchestrator requires artifacts.
type Result struct {
	VideoArtifact    string        `json:"videoArtifact"`
	AudioArtifact    string        `json:"audioArtifact"`
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	Kind             Kind          `json:"kind"`
	Basename         string        `json:"basename,omitempty"`
	MissingArtifacts []string      `json:"missingArtifacts,omitempty"`
	Duration         time.Duration `json:"duration"`
	RequestID        string        `json:"requestId"`

	err error
}

// Err returns the typed error behind a non-success Kind, or nil.
//
// # Examples
//
//	res := orch.Generate(ctx, req)
//	var timeout *generation.ProcessTimeoutError
//	if errors.As(res.Err(), &timeout) {
//	    // retry with a longer timeout
//	}
func (r Result) Err() error {
	return r.err
}
