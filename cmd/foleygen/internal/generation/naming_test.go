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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenNamer(ms int64) *Namer {
	n := NewNamer()
	n.now = func() time.Time { return time.UnixMilli(ms) }
	return n
}

func mustNext(t *testing.T, n *Namer, dir string) string {
	t.Helper()
	name, err := n.Next(dir)
	require.NoError(t, err)
	return name
}

func TestNamer_SameTickIsDistinct(t *testing.T) {
	n := frozenNamer(1700000000000)
	dir := t.TempDir()

	first := mustNext(t, n, dir)
	second := mustNext(t, n, dir)

	assert.Equal(t, "output_1700000000000", first)
	assert.Equal(t, "output_1700000000001", second)
}

func TestNamer_ClockBackwards(t *testing.T) {
	n := frozenNamer(2000)
	dir := t.TempDir()
	assert.Equal(t, "output_2000", mustNext(t, n, dir))

	n.now = func() time.Time { return time.UnixMilli(1000) }
	assert.Equal(t, "output_2001", mustNext(t, n, dir))
}

func TestNamer_SkipsExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_5000.mp4"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_5001_foley.wav"), nil, 0o644))

	assert.Equal(t, "output_5002", mustNext(t, frozenNamer(5000), dir))
}

func TestNamer_Concurrent(t *testing.T) {
	n := frozenNamer(42)
	dir := t.TempDir()

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := n.Next(dir)
			assert.NoError(t, err)
			mu.Lock()
			seen[name] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}

// Two foleygen processes share an output directory and read the same
// millisecond. Each has its own Namer with no memory of the other.
func TestNamer_SeparateNamersSameTick(t *testing.T) {
	dir := t.TempDir()
	a := frozenNamer(1760400000123)
	b := frozenNamer(1760400000123)

	first := mustNext(t, a, dir)
	second := mustNext(t, b, dir)

	assert.Equal(t, "output_1760400000123", first)
	assert.Equal(t, "output_1760400000124", second)
	assert.FileExists(t, filepath.Join(dir, ".output_1760400000123.reserved"))
}

func TestNamer_ReleaseFreesName(t *testing.T) {
	dir := t.TempDir()
	a := frozenNamer(9000)
	b := frozenNamer(9000)

	name := mustNext(t, a, dir)
	a.Release(dir, name)

	assert.NoFileExists(t, filepath.Join(dir, "."+name+".reserved"))
	assert.Equal(t, name, mustNext(t, b, dir))
}

func TestNamer_UnwritableDir(t *testing.T) {
	_, err := frozenNamer(1).Next(filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestOutputPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("/out", "output_1.mp4"), VideoPath("/out", "output_1"))
	assert.Equal(t, filepath.Join("/out", "output_1_foley.wav"), AudioPath("/out", "output_1"))
}
