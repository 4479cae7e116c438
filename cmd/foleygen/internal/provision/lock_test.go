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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "models")
	lock, err := NewFileLock(root)
	require.NoError(t, err)

	require.NoError(t, lock.Acquire())
	assert.Equal(t, os.Getpid(), lock.HolderPID())

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(root, LockFileName))
	assert.True(t, os.IsNotExist(err), "lock file removed on release")

	// Releasing twice is harmless.
	assert.NoError(t, lock.Release())
}

// TestFileLock_SecondHolderRejected relies on flock locks belonging to the
// open file description, so two FileLocks in one process conflict.
func TestFileLock_SecondHolderRejected(t *testing.T) {
	root := t.TempDir()
	first, _ := NewFileLock(root)
	second, _ := NewFileLock(root)

	require.NoError(t, first.Acquire())
	defer first.Release()

	assert.ErrorIs(t, second.Acquire(), ErrLockHeld)
}

func TestNewFileLock_EmptyRoot(t *testing.T) {
	_, err := NewFileLock("")
	assert.ErrorIs(t, err, ErrEmptyModelRoot)
}
