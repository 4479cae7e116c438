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
	"path/filepath"
	"sync"
)

// State is the process-wide provisioning record.
//
// # Description
//
// Holds the model root and the fast path flag. Provisioning writes it,
// Freeze ends the write phase, and from then on it is only read. The
// generation orchestrator reads ModelRoot; only telemetry and diagnostics
// read ExtensionInstalled.
//
// # Thread Safety
//
// Safe for concurrent use.
type State struct {
	mu                 sync.RWMutex
	modelRoot          string
	extensionInstalled bool
	frozen             bool
}

// NewState returns an empty, writable State.
func NewState() *State {
	return &State{}
}

// SetModelRoot records the model root.
//
// # Description
//
// The root is set exactly once. Setting the same path again is a no-op so
// a repeated EnsureModel converges; a different path is a conflict.
//
// # Outputs
//
//   - error: ErrEmptyModelRoot, ErrModelRootConflict or ErrStateFrozen
func (s *State) SetModelRoot(path string) error {
	if path == "" {
		return ErrEmptyModelRoot
	}
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.modelRoot == path {
		return nil
	}
	if s.frozen {
		return ErrStateFrozen
	}
	if s.modelRoot != "" {
		return ErrModelRootConflict
	}
	s.modelRoot = path
	return nil
}

// SetExtensionInstalled records the fast path outcome.
func (s *State) SetExtensionInstalled(installed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrStateFrozen
	}
	s.extensionInstalled = installed
	return nil
}

// Freeze ends the write phase. Safe to call more than once.
func (s *State) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// ModelRoot returns the provisioned model root, or "" before provisioning.
func (s *State) ModelRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelRoot
}

// ExtensionInstalled reports whether the fast path extension is present.
func (s *State) ExtensionInstalled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extensionInstalled
}

// Frozen reports whether Freeze has been called.
func (s *State) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}
