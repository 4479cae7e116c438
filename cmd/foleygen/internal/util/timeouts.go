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

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// MinHTTPTimeout is the floor for hub requests.
	MinHTTPTimeout = 1 * time.Second

	// DefaultGenerationTimeout bounds one run of the generation tool.
	DefaultGenerationTimeout = 300 * time.Second

	// DefaultDetectTimeout bounds accelerator detection.
	DefaultDetectTimeout = 10 * time.Second

	// DefaultImportCheckTimeout bounds the import check of an installed
	// extension. Importing flash_attn loads torch, which is slow when cold.
	DefaultImportCheckTimeout = 60 * time.Second

	// DefaultInstallTimeout bounds the fast path wheel install.
	DefaultInstallTimeout = 10 * time.Minute

	// DefaultHTTPTimeout bounds a single hub metadata request. File
	// transfers are bounded by the caller's context instead.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultWaitDelay is how long Wait keeps pipes open after a kill.
	DefaultWaitDelay = 5 * time.Second
)

// =============================================================================
// Timeout Functions
// =============================================================================

// EnforceMinTimeout returns timeout, raised to minimum when below it.
//
// # Description
//
// Zero and negative values become minimum, so a misconfigured timeout can
// never mean "wait forever".
//
// # Examples
//
//	EnforceMinTimeout(0, time.Second)               // 1s
//	EnforceMinTimeout(30*time.Second, time.Second)  // 30s
func EnforceMinTimeout(timeout, minimum time.Duration) time.Duration {
	if timeout < minimum {
		return minimum
	}
	return timeout
}

// EnforceDefaultTimeout returns defaultTimeout when timeout is unset (<= 0).
func EnforceDefaultTimeout(timeout, defaultTimeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}
