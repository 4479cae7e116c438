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
	"io"
	"sync"
)

// DefaultTailSize is the stderr tail kept for failure messages.
const DefaultTailSize = 4 * 1024

// =============================================================================
// TailBuffer
// =============================================================================

// TailBuffer is an io.Writer that retains only the last Size bytes.
//
// # Description
//
// The generation tool can write megabytes of progress output to stderr.
// Only the end is useful in a failure message, so older bytes are dropped
// as new ones arrive. Truncated reports whether anything was dropped.
//
// # Thread Safety
//
// Safe for concurrent use.
//
// # Examples
//
//	tail := NewTailBuffer(8)
//	tail.Write([]byte("0123456789"))
//	tail.String()    // "23456789"
//	tail.Truncated() // true
type TailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	size      int
	truncated bool
}

// NewTailBuffer creates a TailBuffer. A size <= 0 uses DefaultTailSize.
func NewTailBuffer(size int) *TailBuffer {
	if size <= 0 {
		size = DefaultTailSize
	}
	return &TailBuffer{size: size, buf: make([]byte, 0, size)}
}

// Write appends p, discarding the oldest bytes beyond the limit.
// It always reports len(p) written.
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if n >= t.size {
		t.truncated = t.truncated || n > t.size || len(t.buf) > 0
		t.buf = append(t.buf[:0], p[n-t.size:]...)
		return n, nil
	}
	if overflow := len(t.buf) + n - t.size; overflow > 0 {
		t.truncated = true
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained bytes.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Truncated reports whether any output was discarded.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}

var _ io.Writer = (*TailBuffer)(nil)
