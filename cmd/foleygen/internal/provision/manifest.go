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
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Files written into the model root.
const (
	ManifestFileName      = ".foleygen-snapshot.json"
	ManifestFormatVersion = "1"
)

// Digest algorithm prefixes.
const (
	DigestSHA256  = "sha256"
	DigestGitSHA1 = "gitsha1"
)

// Manifest records which snapshot files were verified on disk.
//
// It lets a repeated EnsureModel skip rehashing multi-gigabyte weight files
// whose size and mtime have not changed since they were verified.
type Manifest struct {
	FormatVersion  string                   `json:"format_version"`
	ModelID        string                   `json:"model_id"`
	Revision       string                   `json:"revision"`
	CommitSHA      string                   `json:"commit_sha"`
	Files          map[string]ManifestEntry `json:"files"`
	UpdatedAtMilli int64                    `json:"updated_at_milli"`
}

// ManifestEntry is one verified file.
type ManifestEntry struct {
	Path   string `json:"path"`
	Digest string `json:"digest"` // "<algo>:<hex>", see RemoteFile.ExpectedDigest
	Size   int64  `json:"size"`
	Mtime  int64  `json:"mtime"` // UnixNano at verification time
}

// NewManifest returns an empty manifest for a snapshot.
func NewManifest(modelID, revision, commit string) *Manifest {
	return &Manifest{
		FormatVersion: ManifestFormatVersion,
		ModelID:       modelID,
		Revision:      revision,
		CommitSHA:     commit,
		Files:         map[string]ManifestEntry{},
	}
}

// LoadManifest reads the manifest from root.
//
// # Outputs
//
//   - *Manifest: The manifest, never nil on success
//   - error: os.ErrNotExist when absent, ErrManifestCorrupted or
//     ErrVersionMismatch when unusable
func LoadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestCorrupted, err)
	}
	if m.FormatVersion != ManifestFormatVersion {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrVersionMismatch, ManifestFormatVersion, m.FormatVersion)
	}
	if m.Files == nil {
		m.Files = map[string]ManifestEntry{}
	}
	return &m, nil
}

// Save writes the manifest atomically (temp file + rename).
func (m *Manifest) Save(root string) error {
	m.UpdatedAtMilli = time.Now().UnixMilli()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(root, ManifestFileName), data, 0644)
}

// Record stores an entry for a file just verified at path.
func (m *Manifest) Record(rel, path, digest string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	m.Files[rel] = ManifestEntry{
		Path:   rel,
		Digest: digest,
		Size:   info.Size(),
		Mtime:  info.ModTime().UnixNano(),
	}
	return nil
}

// Trusts reports whether the entry for rel still describes info with the
// expected digest, so the file need not be rehashed.
func (m *Manifest) Trusts(rel string, info os.FileInfo, digest string) bool {
	if m == nil || digest == "" {
		return false
	}
	e, ok := m.Files[rel]
	return ok &&
		e.Digest == digest &&
		e.Size == info.Size() &&
		e.Mtime == info.ModTime().UnixNano()
}

// Prune drops entries for files not in keep.
func (m *Manifest) Prune(keep map[string]bool) {
	for rel := range m.Files {
		if !keep[rel] {
			delete(m.Files, rel)
		}
	}
}

// -----------------------------------------------------------------------------
// Digests
// -----------------------------------------------------------------------------

// FileDigest hashes path with the algorithm named by expected's prefix and
// returns the digest in the same "<algo>:<hex>" form.
func FileDigest(path, expected string) (string, error) {
	algo, _, ok := strings.Cut(expected, ":")
	if !ok {
		return "", fmt.Errorf("malformed digest %q", expected)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var h hash.Hash
	switch algo {
	case DigestSHA256:
		h = sha256.New()
	case DigestGitSHA1:
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		// Git blob ids hash a "blob <size>\x00" header before the content.
		h = sha1.New()
		h.Write([]byte("blob " + strconv.FormatInt(info.Size(), 10) + "\x00"))
	default:
		return "", fmt.Errorf("unsupported digest algorithm %q", algo)
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return algo + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile checks size and digest of path against remote.
//
// A remote without a known digest is verified by size alone.
func VerifyFile(path string, remote RemoteFile) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() != remote.Size {
		return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrSizeMismatch, remote.Path, info.Size(), remote.Size)
	}
	expected := remote.ExpectedDigest()
	if expected == "" {
		return nil
	}
	got, err := FileDigest(path, expected)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrChecksumMismatch, remote.Path, got, expected)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// isNotExist unwraps LoadManifest's error.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
