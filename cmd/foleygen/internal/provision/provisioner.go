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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/foleygen/cmd/foleygen/config"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
)

const tracerName = "github.com/AleutianAI/foleygen/provision"

// MetricsRecorder receives provisioning counters. telemetry.Metrics
// implements it; nil disables recording.
type MetricsRecorder interface {
	FileFetched(bytes int64)
	FileSkipped()
	SetExtensionInstalled(installed bool)
}

type noopMetrics struct{}

func (noopMetrics) FileFetched(int64)          {}
func (noopMetrics) FileSkipped()               {}
func (noopMetrics) SetExtensionInstalled(bool) {}

// Provisioner is the environment provisioner.
//
// # Description
//
// EnsureModel converges a local directory onto a hub snapshot and records
// it in State. EnsureFastPath tries to install the pinned performance
// extension and never fails the caller. Setup runs both and freezes State.
//
// # Thread Safety
//
// Run provisioning from one goroutine before serving requests. EnsureModel
// fans out internally.
type Provisioner struct {
	cfg     *config.FoleyConfig
	state   *State
	hub     Transferer
	pm      process.Manager
	metrics MetricsRecorder
	logger  *slog.Logger
}

// New creates a Provisioner.
//
// # Inputs
//
//   - cfg: Loaded configuration. Must not be nil.
//   - state: State to populate. Must not be nil.
//   - hub: Snapshot transfer, normally a *HubClient
//   - pm: Runs the extension installer
//   - metrics: May be nil
//   - logger: May be nil (slog.Default)
func New(cfg *config.FoleyConfig, state *State, hub Transferer, pm process.Manager, metrics MetricsRecorder, logger *slog.Logger) *Provisioner {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		cfg:     cfg,
		state:   state,
		hub:     hub,
		pm:      pm,
		metrics: metrics,
		logger:  logger,
	}
}

// State returns the state this provisioner writes.
func (p *Provisioner) State() *State { return p.state }

// -----------------------------------------------------------------------------
// EnsureModel
// -----------------------------------------------------------------------------

// EnsureModel makes targetRoot hold the configured revision of modelID.
//
// # Description
//
//  1. Locks targetRoot against a concurrent setup.
//  2. Resolves the revision to a commit and its file list.
//  3. Skips every file whose size matches and whose digest is either
//     vouched for by the manifest (same size and mtime) or recomputed.
//  4. Fetches the rest, MaxConcurrentDownloads at a time.
//  5. Saves the manifest, also after a failed fetch so a retry resumes.
//  6. Records targetRoot in State.
//
// Directory existence alone never counts as provisioned.
//
// # Outputs
//
//   - string: targetRoot
//   - error: *ProvisioningError
//
// # Examples
//
//	root, err := p.EnsureModel(ctx, "tencent/HunyuanVideo-Foley", "/app/models/HunyuanVideo-Foley")
func (p *Provisioner) EnsureModel(ctx context.Context, modelID, targetRoot string) (root string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provision.ensure_model")
	span.SetAttributes(
		attribute.String("model.id", modelID),
		attribute.String("model.root", targetRoot),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fail := func(op string, err error) (string, error) {
		return "", &ProvisioningError{Op: op, ModelID: modelID, Err: err}
	}

	if targetRoot == "" {
		return fail("lock", ErrEmptyModelRoot)
	}
	lock, err := NewFileLock(targetRoot)
	if err != nil {
		return fail("lock", err)
	}
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, ErrLockHeld) {
			p.logger.Error("setup already running", "root", targetRoot, "holder_pid", lock.HolderPID())
		}
		return fail("lock", err)
	}
	defer lock.Release()

	start := time.Now()
	snap, err := p.hub.Resolve(ctx, modelID, p.cfg.Model.Revision)
	if err != nil {
		if isHubNotFound(err) {
			p.logger.Error("model or revision not found on hub", "model", modelID, "revision", p.cfg.Model.Revision)
		}
		return fail("resolve", err)
	}
	span.SetAttributes(attribute.String("model.commit", snap.CommitSHA))

	manifest := p.loadManifest(targetRoot, snap)

	stale, err := p.plan(ctx, targetRoot, snap, manifest)
	if err != nil {
		return fail("verify", err)
	}
	p.logger.Info("model snapshot resolved",
		"model", modelID,
		"commit", snap.CommitSHA,
		"files", len(snap.Files),
		"to_fetch", len(stale),
	)

	fetchErr := p.fetchAll(ctx, targetRoot, snap, stale, manifest)

	keep := make(map[string]bool, len(snap.Files))
	for _, f := range snap.Files {
		keep[f.Path] = true
	}
	manifest.Prune(keep)
	if err := manifest.Save(targetRoot); err != nil {
		if fetchErr != nil {
			return fail("fetch", fetchErr)
		}
		return fail("manifest", err)
	}
	if fetchErr != nil {
		return fail("fetch", fetchErr)
	}

	if err := p.state.SetModelRoot(targetRoot); err != nil {
		return fail("state", err)
	}

	span.SetAttributes(attribute.Int("files.fetched", len(stale)))
	p.logger.Info("model ready",
		"root", targetRoot,
		"fetched", len(stale),
		"skipped", len(snap.Files)-len(stale),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return targetRoot, nil
}

// loadManifest returns the on-disk manifest when it belongs to the same
// model, otherwise a fresh one. Entries of a different commit stay usable
// because they are keyed by digest.
func (p *Provisioner) loadManifest(root string, snap *Snapshot) *Manifest {
	m, err := LoadManifest(root)
	switch {
	case err == nil && m.ModelID == snap.ModelID:
		m.Revision = snap.Revision
		m.CommitSHA = snap.CommitSHA
		return m
	case err == nil:
		p.logger.Warn("manifest belongs to another model, rebuilding", "found", m.ModelID, "want", snap.ModelID)
	case !isNotExist(err):
		p.logger.Warn("manifest unusable, rebuilding", "error", err)
	}
	return NewManifest(snap.ModelID, snap.Revision, snap.CommitSHA)
}

// plan returns the files that need fetching.
func (p *Provisioner) plan(ctx context.Context, root string, snap *Snapshot, manifest *Manifest) ([]RemoteFile, error) {
	var stale []RemoteFile
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := p.upToDate(root, f, manifest)
		if err != nil {
			return nil, err
		}
		if ok {
			p.metrics.FileSkipped()
			continue
		}
		stale = append(stale, f)
	}
	return stale, nil
}

func (p *Provisioner) upToDate(root string, f RemoteFile, manifest *Manifest) (bool, error) {
	local := f.LocalPath(root)
	info, err := os.Stat(local)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() || info.Size() != f.Size {
		return false, nil
	}

	expected := f.ExpectedDigest()
	if manifest.Trusts(f.Path, info, expected) {
		return true, nil
	}
	if err := VerifyFile(local, f); err != nil {
		if errors.Is(err, ErrChecksumMismatch) {
			p.logger.Warn("local file corrupt, refetching", "path", f.Path)
			return false, nil
		}
		return false, err
	}
	if err := manifest.Record(f.Path, local, expected); err != nil {
		return false, err
	}
	return true, nil
}

// fetchAll downloads stale files with bounded concurrency and records each
// verified file in the manifest.
func (p *Provisioner) fetchAll(ctx context.Context, root string, snap *Snapshot, stale []RemoteFile, manifest *Manifest) error {
	if len(stale) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Hub.MaxConcurrentDownloads))

	var mu sync.Mutex
	for _, f := range stale {
		g.Go(func() error {
			dst := f.LocalPath(root)
			n, err := p.hub.Fetch(gctx, snap, f, dst)
			if err != nil {
				return &FetchError{Path: f.Path, Err: err}
			}
			p.metrics.FileFetched(n)
			p.logger.Debug("file fetched", "path", f.Path, "bytes", n)

			mu.Lock()
			defer mu.Unlock()
			return manifest.Record(f.Path, dst, f.ExpectedDigest())
		})
	}
	return g.Wait()
}

// -----------------------------------------------------------------------------
// Setup
// -----------------------------------------------------------------------------

// Setup runs the full first-run provisioning and freezes State.
//
// # Description
//
// EnsureModel failure is returned and State is left unfrozen. The fast
// path runs only when fast_path.enabled is set, and its failure is logged
// but not returned.
func (p *Provisioner) Setup(ctx context.Context) error {
	p.logger.Info("setting up environment", "model", p.cfg.Model.ID, "root", p.cfg.Model.Root)

	if _, err := p.EnsureModel(ctx, p.cfg.Model.ID, p.cfg.Model.Root); err != nil {
		return err
	}

	if p.cfg.FastPath.Enabled {
		if !p.EnsureFastPath(ctx, DefaultFastPathArtifact) {
			p.logger.Warn("fast path unavailable, continuing without it")
		}
	} else {
		p.logger.Info("fast path disabled by configuration")
	}

	p.state.Freeze()
	p.metrics.SetExtensionInstalled(p.state.ExtensionInstalled())
	p.logger.Info("environment setup complete", "extension_installed", p.state.ExtensionInstalled())
	return nil
}

// LoadState restores a frozen State in a later process.
//
// # Description
//
// The model root comes from configuration. The extension flag is set
// when a previous setup left a matching marker and fast_path.import_check still
// passes through pm. Whether the root actually holds weights is the
// prerequisite checker's concern, not this function's.
func LoadState(ctx context.Context, cfg *config.FoleyConfig, pm process.Manager) (*State, error) {
	state := NewState()
	if err := state.SetModelRoot(cfg.Model.Root); err != nil {
		return nil, fmt.Errorf("restoring provisioning state: %w", err)
	}
	if marker, err := ReadExtensionMarker(cfg.Model.Root); err == nil && marker.Matches(DefaultFastPathArtifact) {
		if VerifyExtension(ctx, pm, cfg.FastPath.ImportCheck) == nil {
			_ = state.SetExtensionInstalled(true)
		}
	}
	state.Freeze()
	return state, nil
}
