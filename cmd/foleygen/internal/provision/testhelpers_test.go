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
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// blobID computes the git blob sha1 of content.
func blobID(content string) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// remoteFor describes content the way the hub would. Files ending in
// .safetensors are treated as LFS.
func remoteFor(path, content string) RemoteFile {
	f := RemoteFile{Path: path, Size: int64(len(content)), BlobID: blobID(content)}
	if filepath.Ext(path) == ".safetensors" {
		f.SHA256 = sha256Hex(content)
		f.BlobID = blobID("version https://git-lfs.github.com/spec/v1\n")
	}
	return f
}

// fakeTransferer serves an in-memory snapshot and counts transfers.
type fakeTransferer struct {
	mu         sync.Mutex
	files      map[string]string
	commit     string
	resolveErr error
	fetchErr   map[string]error

	resolves atomic.Int32
	fetches  atomic.Int32
	fetched  []string
}

func newFakeTransferer(files map[string]string) *fakeTransferer {
	return &fakeTransferer{files: files, commit: "0123456789abcdef", fetchErr: map[string]error{}}
}

func (f *fakeTransferer) Resolve(ctx context.Context, modelID, revision string) (*Snapshot, error) {
	f.resolves.Add(1)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := &Snapshot{ModelID: modelID, Revision: revision, CommitSHA: f.commit}
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		snap.Files = append(snap.Files, remoteFor(p, f.files[p]))
	}
	return snap, nil
}

func (f *fakeTransferer) Fetch(ctx context.Context, snap *Snapshot, file RemoteFile, dst string) (int64, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	content := f.files[file.Path]
	err := f.fetchErr[file.Path]
	f.fetched = append(f.fetched, file.Path)
	f.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dst, []byte(content), 0644); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (f *fakeTransferer) fetchedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.fetched...)
	sort.Strings(out)
	return out
}

// recordingMetrics counts MetricsRecorder calls.
type recordingMetrics struct {
	fetched   atomic.Int32
	bytes     atomic.Int64
	skipped   atomic.Int32
	installed atomic.Bool
}

func (m *recordingMetrics) FileFetched(n int64) {
	m.fetched.Add(1)
	m.bytes.Add(n)
}
func (m *recordingMetrics) FileSkipped()                 { m.skipped.Add(1) }
func (m *recordingMetrics) SetExtensionInstalled(v bool) { m.installed.Store(v) }
