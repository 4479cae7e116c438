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
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// LockFileName is created inside the model root while setup runs.
const LockFileName = ".foleygen.lock"

// FileLock is an advisory flock(2) lock on the model root.
//
// # Description
//
// Two `foleygen setup` runs against the same root would otherwise write
// the same .incomplete files concurrently. The second run gets ErrLockHeld
// instead of waiting.
//
// # Thread Safety
//
// FileLock is NOT safe for concurrent use. Each caller takes its own.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock for root. It is not acquired yet.
func NewFileLock(root string) (*FileLock, error) {
	if root == "" {
		return nil, ErrEmptyModelRoot
	}
	return &FileLock{path: filepath.Join(root, LockFileName)}, nil
}

// Acquire takes the lock without blocking.
//
// # Outputs
//
//   - error: ErrLockHeld when another process holds it, otherwise
//     ErrLockAcquireFailed wrapping the cause
func (l *FileLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("%w: creating lock directory: %v", ErrLockAcquireFailed, err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening lock file: %v", ErrLockAcquireFailed, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLockHeld
		}
		return fmt.Errorf("%w: flock: %v", ErrLockAcquireFailed, err)
	}

	// Holder info for humans; failures here don't matter.
	_ = file.Truncate(0)
	_, _ = file.Seek(0, 0)
	_, _ = fmt.Fprintf(file, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))

	l.file = file
	return nil
}

// Release unlocks and removes the lock file. Safe on an unacquired lock.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	_ = os.Remove(l.path)
	return err
}

// HolderPID returns the pid written by the holder, or 0 if unknown.
func (l *FileLock) HolderPID() int {
	content, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	var pid int
	if _, err := fmt.Sscanf(string(content), "pid=%d", &pid); err != nil {
		return 0
	}
	return pid
}
