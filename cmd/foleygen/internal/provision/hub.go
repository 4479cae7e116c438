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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

// PartialSuffix marks an in-progress download next to its destination.
const PartialSuffix = ".incomplete"

// -----------------------------------------------------------------------------
// Snapshot Types
// -----------------------------------------------------------------------------

// Snapshot is a resolved, immutable model revision.
type Snapshot struct {
	ModelID   string
	Revision  string // as requested, e.g. "main"
	CommitSHA string // what Revision pointed to at resolve time
	Files     []RemoteFile
}

// RemoteFile is one file of a snapshot.
type RemoteFile struct {
	Path   string // slash-separated, relative to the snapshot root
	Size   int64
	BlobID string // git blob sha1
	SHA256 string // set for LFS files
}

// IsLFS reports whether the file is stored in LFS.
func (f RemoteFile) IsLFS() bool { return f.SHA256 != "" }

// ExpectedDigest returns "sha256:<hex>" for LFS files, "gitsha1:<hex>" for
// regular files, or "" if the hub reported neither.
func (f RemoteFile) ExpectedDigest() string {
	switch {
	case f.SHA256 != "":
		return DigestSHA256 + ":" + strings.ToLower(f.SHA256)
	case f.BlobID != "":
		return DigestGitSHA1 + ":" + strings.ToLower(f.BlobID)
	default:
		return ""
	}
}

// LocalPath joins the file onto root.
func (f RemoteFile) LocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(f.Path))
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Transferer resolves and fetches model snapshots.
//
// # Thread Safety
//
// Fetch is called concurrently for different files of one snapshot.
type Transferer interface {
	// Resolve pins revision of modelID to a commit and lists its files.
	Resolve(ctx context.Context, modelID, revision string) (*Snapshot, error)

	// Fetch downloads file into dst, verifying it before dst appears.
	// It returns the number of bytes transferred by this call.
	Fetch(ctx context.Context, snap *Snapshot, file RemoteFile, dst string) (int64, error)
}

// -----------------------------------------------------------------------------
// HubClient
// -----------------------------------------------------------------------------

// HubClientConfig configures a HubClient.
type HubClientConfig struct {
	// BaseURL of the hub, e.g. https://huggingface.co
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// RequestsPerSecond limits request starts. Zero means unlimited.
	RequestsPerSecond float64

	// RequestTimeout bounds Resolve and the wait for response headers.
	RequestTimeout time.Duration

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// HubClient implements Transferer against the Hugging Face hub HTTP API.
//
// # Description
//
// Resolve calls the revision endpoint with blobs=true, which lists every
// sibling file with its size, git blob id and LFS sha256. Fetch downloads
// from the resolve endpoint pinned to the snapshot's commit, so a branch
// moving mid-setup cannot mix two revisions.
//
// # Resume
//
// Bytes land in "<dst>.incomplete". When that file already exists, Fetch
// sends "Range: bytes=N-" and appends on 206. A 200 reply means the server
// ignored the range and the partial is rewritten from scratch.
//
// # Limitations
//
//   - The hub may redirect LFS downloads to a CDN; the Authorization header
//     is only forwarded by net/http when the redirect stays on the same host
type HubClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewHubClient creates a HubClient.
func NewHubClient(cfg HubClientConfig, logger *slog.Logger) *HubClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := util.EnforceMinTimeout(
		util.EnforceDefaultTimeout(cfg.RequestTimeout, util.DefaultHTTPTimeout),
		util.MinHTTPTimeout,
	)

	client := cfg.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		// No overall Timeout: weight files are several gigabytes.
		client = &http.Client{Transport: transport}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HubClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    client,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		logger:  logger,
	}
}

type revisionResponse struct {
	ID       string `json:"id"`
	SHA      string `json:"sha"`
	Siblings []struct {
		RFilename string `json:"rfilename"`
		Size      int64  `json:"size"`
		BlobID    string `json:"blobId"`
		LFS       *struct {
			SHA256 string `json:"sha256"`
			Size   int64  `json:"size"`
		} `json:"lfs"`
	} `json:"siblings"`
}

// Resolve implements Transferer.
func (c *HubClient) Resolve(ctx context.Context, modelID, revision string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/models/%s/revision/%s?blobs=true",
		c.baseURL, escapeSegments(modelID), url.PathEscape(revision))

	resp, err := c.get(ctx, endpoint, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, hubError(resp, endpoint)
	}

	var body revisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing revision response: %w", err)
	}
	if body.SHA == "" {
		return nil, fmt.Errorf("revision response for %s@%s has no commit sha", modelID, revision)
	}

	snap := &Snapshot{ModelID: modelID, Revision: revision, CommitSHA: body.SHA}
	for _, s := range body.Siblings {
		rel, err := cleanRelPath(s.RFilename)
		if err != nil {
			return nil, err
		}
		f := RemoteFile{Path: rel, Size: s.Size, BlobID: s.BlobID}
		if s.LFS != nil {
			f.SHA256 = s.LFS.SHA256
			f.Size = s.LFS.Size
		}
		snap.Files = append(snap.Files, f)
	}
	if len(snap.Files) == 0 {
		return nil, ErrEmptySnapshot
	}

	c.logger.Debug("snapshot resolved",
		"model", modelID, "revision", revision, "commit", body.SHA, "files", len(snap.Files))
	return snap, nil
}

// Fetch implements Transferer.
func (c *HubClient) Fetch(ctx context.Context, snap *Snapshot, file RemoteFile, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	partial := dst + PartialSuffix

	endpoint := fmt.Sprintf("%s/%s/resolve/%s/%s",
		c.baseURL, escapeSegments(snap.ModelID), url.PathEscape(snap.CommitSHA), escapeSegments(file.Path))

	written, err := c.download(ctx, endpoint, partial, file.Size)
	if err != nil {
		return written, err
	}

	if err := VerifyFile(partial, file); err != nil {
		// A corrupt partial must not be resumed.
		_ = os.Remove(partial)
		return written, err
	}
	if err := os.Rename(partial, dst); err != nil {
		return written, err
	}
	return written, nil
}

// download fills partial up to size bytes, resuming when possible.
func (c *HubClient) download(ctx context.Context, endpoint, partial string, size int64) (int64, error) {
	var offset int64
	if info, err := os.Stat(partial); err == nil {
		offset = info.Size()
	}
	if offset > size {
		_ = os.Remove(partial)
		offset = 0
	}
	if offset == size && size > 0 {
		// Complete from an earlier run; verification decides.
		return 0, nil
	}

	resp, err := c.get(ctx, endpoint, offset)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		flags |= os.O_TRUNC
		if offset > 0 {
			c.logger.Debug("range ignored, restarting download", "url", endpoint, "offset", offset)
		}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		_ = os.Remove(partial)
		return 0, fmt.Errorf("range %d- not satisfiable for %s", offset, endpoint)
	default:
		return 0, hubError(resp, endpoint)
	}

	out, err := os.OpenFile(partial, flags, 0644)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, copyErr)
	}
	return n, closeErr
}

// get issues a rate-limited GET, with a Range header when offset > 0.
func (c *HubClient) get(ctx context.Context, endpoint string, offset int64) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	req.Header.Set("User-Agent", "foleygen")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("cannot reach hub at %s: %w", c.baseURL, err)
	}
	return resp, nil
}

func hubError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HubError{StatusCode: resp.StatusCode, URL: endpoint, Body: strings.TrimSpace(string(body))}
}

// escapeSegments escapes each slash-separated segment, keeping the slashes.
func escapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// cleanRelPath rejects absolute paths and parent traversal in hub listings.
func cleanRelPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, p)
	}
	return clean, nil
}

var (
	_ Transferer = (*HubClient)(nil)
	_ error      = (*HubError)(nil)
)

// isHubNotFound is used by callers that want a friendlier message.
func isHubNotFound(err error) bool {
	var he *HubError
	return errors.As(err, &he) && he.NotFound()
}
