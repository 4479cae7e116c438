// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provision

import (
	"errors"
	"fmt"
)

// Sentinel errors for provisioning.
var (
	// State errors
	ErrStateFrozen       = errors.New("provisioning state is frozen")
	ErrModelRootConflict = errors.New("model root is already set to a different path")
	ErrEmptyModelRoot    = errors.New("model root must not be empty")

	// Lock errors
	ErrLockAcquireFailed = errors.New("failed to acquire lock")
	ErrLockHeld          = errors.New("another setup operation is in progress")

	// Transfer errors
	ErrChecksumMismatch = errors.New("checksum validation failed")
	ErrSizeMismatch     = errors.New("size validation failed")
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrEmptySnapshot    = errors.New("snapshot lists no files")

	// Extension errors
	ErrNoImportCheck = errors.New("no extension import check configured")

	// Manifest errors
	ErrManifestCorrupted = errors.New("snapshot manifest is corrupted")
	ErrVersionMismatch   = errors.New("snapshot manifest format version mismatch")
)

// ProvisioningError is returned by EnsureModel and Setup.
//
// It is fatal for the process: no generation can run without weights.
type ProvisioningError struct {
	Op      string // resolve, lock, fetch, manifest, state
	ModelID string
	Err     error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s (%s): %v", e.ModelID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// HubError is a non-success HTTP response from the model hub.
type HubError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *HubError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("hub returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("hub returned %d for %s", e.StatusCode, e.URL)
}

// NotFound reports a 404, usually a wrong model id or revision.
func (e *HubError) NotFound() bool { return e.StatusCode == 404 }

// Unauthorized reports 401/403, usually a gated model without HF_TOKEN.
func (e *HubError) Unauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// FetchError names the file a transfer failed on.
type FetchError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}
