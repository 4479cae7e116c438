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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foleygen/cmd/foleygen/config"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

const testModel = "tencent/HunyuanVideo-Foley"

func testSnapshotFiles() map[string]string {
	return map[string]string{
		"config.yaml":                    "model: foley\n",
		"hunyuanvideo_foley.safetensors": "weights weights weights",
		"synchformer_state_dict.pth":     "synchformer",
		"vae_128d_48k.pth":               "vae",
	}
}

func testConfig(t *testing.T) *config.FoleyConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Model.Root = filepath.Join(t.TempDir(), "HunyuanVideo-Foley")
	cfg.Hub.MaxConcurrentDownloads = 2
	cfg.FastPath.Timeout = time.Second
	return &cfg
}

// =============================================================================
// EnsureModel Tests
// =============================================================================

// TestEnsureModel_SecondCallFetchesNothing verifies idempotence through the
// transfer call count.
func TestEnsureModel_SecondCallFetchesNothing(t *testing.T) {
	// Arrange
	cfg := testConfig(t)
	hub := newFakeTransferer(testSnapshotFiles())
	metrics := &recordingMetrics{}
	p := New(cfg, NewState(), hub, &process.MockManager{}, metrics, nil)
	ctx := context.Background()

	// Act
	root, err := p.EnsureModel(ctx, testModel, cfg.Model.Root)
	require.NoError(t, err)
	firstFetches := hub.fetches.Load()

	root2, err := p.EnsureModel(ctx, testModel, cfg.Model.Root)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, root, root2)
	assert.Equal(t, int32(4), firstFetches)
	assert.Equal(t, int32(4), hub.fetches.Load(), "second call transfers nothing")
	assert.Equal(t, int32(4), metrics.fetched.Load())
	assert.Equal(t, int32(4), metrics.skipped.Load())
	assert.Equal(t, cfg.Model.Root, p.State().ModelRoot())

	m, err := LoadManifest(cfg.Model.Root)
	require.NoError(t, err)
	assert.Len(t, m.Files, 4)
	assert.Equal(t, hub.commit, m.CommitSHA)
}

func TestEnsureModel_CorruptedFileRefetched(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(testSnapshotFiles())
	p := New(cfg, NewState(), hub, nil, nil, nil)
	ctx := context.Background()
	_, err := p.EnsureModel(ctx, testModel, cfg.Model.Root)
	require.NoError(t, err)

	// Same size, different bytes, newer mtime.
	target := filepath.Join(cfg.Model.Root, "vae_128d_48k.pth")
	require.NoError(t, os.WriteFile(target, []byte("VAE"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(target, future, future))
	hub.fetched = nil

	_, err = p.EnsureModel(ctx, testModel, cfg.Model.Root)

	require.NoError(t, err)
	assert.Equal(t, []string{"vae_128d_48k.pth"}, hub.fetchedPaths())
	data, _ := os.ReadFile(target)
	assert.Equal(t, "vae", string(data))
}

func TestEnsureModel_TruncatedFileRefetched(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(testSnapshotFiles())
	p := New(cfg, NewState(), hub, nil, nil, nil)
	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)
	require.NoError(t, err)

	require.NoError(t, os.Truncate(filepath.Join(cfg.Model.Root, "hunyuanvideo_foley.safetensors"), 3))
	hub.fetched = nil

	_, err = p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	require.NoError(t, err)
	assert.Equal(t, []string{"hunyuanvideo_foley.safetensors"}, hub.fetchedPaths())
}

// TestEnsureModel_LostManifestRehashes verifies valid files are not
// re-downloaded just because the manifest disappeared.
func TestEnsureModel_LostManifestRehashes(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(testSnapshotFiles())
	p := New(cfg, NewState(), hub, nil, nil, nil)
	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(cfg.Model.Root, ManifestFileName)))

	_, err = p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	require.NoError(t, err)
	assert.Equal(t, int32(4), hub.fetches.Load())
	_, err = LoadManifest(cfg.Model.Root)
	assert.NoError(t, err, "manifest rebuilt")
}

// TestEnsureModel_ExistingDirectoryIsNotEnough verifies an empty root is
// populated rather than trusted.
func TestEnsureModel_ExistingDirectoryIsNotEnough(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))
	hub := newFakeTransferer(testSnapshotFiles())
	p := New(cfg, NewState(), hub, nil, nil, nil)

	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	require.NoError(t, err)
	assert.Equal(t, int32(4), hub.fetches.Load())
}

func TestEnsureModel_ResolveFailure(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(nil)
	hub.resolveErr = &HubError{StatusCode: 401, URL: "https://hub/api"}
	state := NewState()
	p := New(cfg, state, hub, nil, nil, nil)

	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "resolve", perr.Op)
	assert.Equal(t, testModel, perr.ModelID)
	var he *HubError
	assert.ErrorAs(t, err, &he)
	assert.True(t, he.Unauthorized())
	assert.Equal(t, "", state.ModelRoot(), "state untouched on failure")
}

func TestEnsureModel_FetchFailure(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(testSnapshotFiles())
	hub.fetchErr["synchformer_state_dict.pth"] = errors.New("connection reset by peer")
	state := NewState()
	p := New(cfg, state, hub, nil, nil, nil)

	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fetch", perr.Op)
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "synchformer_state_dict.pth", ferr.Path)
	assert.Equal(t, "", state.ModelRoot())

	// The manifest is still written so a retry resumes.
	_, err = LoadManifest(cfg.Model.Root)
	assert.NoError(t, err)
}

func TestEnsureModel_LockHeld(t *testing.T) {
	cfg := testConfig(t)
	held, _ := NewFileLock(cfg.Model.Root)
	require.NoError(t, held.Acquire())
	defer held.Release()
	hub := newFakeTransferer(testSnapshotFiles())
	p := New(cfg, NewState(), hub, nil, nil, nil)

	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, int32(0), hub.resolves.Load())
}

func TestEnsureModel_StateConflict(t *testing.T) {
	cfg := testConfig(t)
	state := NewState()
	require.NoError(t, state.SetModelRoot("/somewhere/else"))
	p := New(cfg, state, newFakeTransferer(testSnapshotFiles()), nil, nil, nil)

	_, err := p.EnsureModel(context.Background(), testModel, cfg.Model.Root)

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "state", perr.Op)
	assert.ErrorIs(t, err, ErrModelRootConflict)
}

// TestEnsureModel_AgainstHubClient runs the real client end to end and
// checks the second pass issues only the revision request.
func TestEnsureModel_AgainstHubClient(t *testing.T) {
	h, srv := newFakeHub(t, hubFiles)
	cfg := testConfig(t)
	cfg.Hub.URL = srv.URL
	client := NewHubClient(HubClientConfig{BaseURL: srv.URL, RequestsPerSecond: 100}, nil)
	p := New(cfg, NewState(), client, nil, nil, nil)
	ctx := context.Background()

	_, err := p.EnsureModel(ctx, testModel, cfg.Model.Root)
	require.NoError(t, err)
	firstPass := len(h.rangeHeaders())

	_, err = p.EnsureModel(ctx, testModel, cfg.Model.Root)
	require.NoError(t, err)

	assert.Equal(t, 1+len(hubFiles), firstPass)
	assert.Equal(t, firstPass+1, len(h.rangeHeaders()))
	data, err := os.ReadFile(filepath.Join(cfg.Model.Root, "vae", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, hubFiles["vae/config.json"], string(data))
}

// =============================================================================
// EnsureFastPath Tests
// =============================================================================

func importSucceeds(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, nil
}

func hostArtifact() FastPathArtifact {
	a := DefaultFastPathArtifact
	a.Platform = CurrentPlatform()
	return a
}

func TestEnsureFastPath_PlatformMismatch(t *testing.T) {
	cfg := testConfig(t)
	pm := &process.MockManager{}
	state := NewState()
	p := New(cfg, state, nil, pm, nil, nil)
	artifact := DefaultFastPathArtifact
	artifact.Platform = "plan9/mips"

	ok := p.EnsureFastPath(context.Background(), artifact)

	assert.False(t, ok)
	assert.False(t, state.ExtensionInstalled())
	assert.Empty(t, pm.GetCalls(), "installer never runs")
}

func TestEnsureFastPath_InstallerFailureDegrades(t *testing.T) {
	cfg := testConfig(t)
	pm := &process.MockManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			return &process.Outcome{ExitCode: 1, Stderr: "no matching distribution"},
				util.NewCommandError(spec.CommandLine(), 1, "no matching distribution", nil)
		},
	}
	state := NewState()
	metrics := &recordingMetrics{}
	p := New(cfg, state, nil, pm, metrics, nil)

	ok := p.EnsureFastPath(context.Background(), hostArtifact())

	assert.False(t, ok)
	assert.False(t, state.ExtensionInstalled())
	assert.False(t, metrics.installed.Load())
	_, err := ReadExtensionMarker(cfg.Model.Root)
	assert.Error(t, err, "no marker on failure")
}

func TestEnsureFastPath_Success(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))
	var got process.Spec
	pm := &process.MockManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			got = spec
			return &process.Outcome{}, nil
		},
		RunFunc: importSucceeds,
	}
	state := NewState()
	p := New(cfg, state, nil, pm, nil, nil)
	artifact := hostArtifact()

	ok := p.EnsureFastPath(context.Background(), artifact)

	assert.True(t, ok)
	assert.True(t, state.ExtensionInstalled())
	assert.Equal(t, "python3", got.Name)
	assert.Equal(t, []string{"-m", "pip", "install", artifact.URL}, got.Args)
	assert.Equal(t, time.Second, got.Timeout)
	marker, err := ReadExtensionMarker(cfg.Model.Root)
	require.NoError(t, err)
	assert.True(t, marker.Matches(artifact))

	// A second run trusts the marker once the import check passes.
	p2 := New(cfg, NewState(), nil, pm, nil, nil)
	assert.True(t, p2.EnsureFastPath(context.Background(), artifact))
	assert.Equal(t, 1, pm.CallCount("Exec"))
	assert.Equal(t, 1, pm.CallCount("Run"))
}

// TestEnsureFastPath_MarkerWithoutPackageReinstalls covers a model volume
// that outlived the interpreter the extension was installed into.
func TestEnsureFastPath_MarkerWithoutPackageReinstalls(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))
	artifact := hostArtifact()
	require.NoError(t, writeExtensionMarker(cfg.Model.Root, artifact))

	var checked []string
	pm := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			checked = append([]string{name}, args...)
			return nil, util.NewCommandError(name, 1, "ModuleNotFoundError: No module named 'flash_attn'", nil)
		},
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			return &process.Outcome{}, nil
		},
	}
	state := NewState()
	p := New(cfg, state, nil, pm, nil, nil)

	ok := p.EnsureFastPath(context.Background(), artifact)

	assert.True(t, ok)
	assert.True(t, state.ExtensionInstalled())
	assert.Equal(t, cfg.FastPath.ImportCheck, checked)
	assert.Equal(t, 1, pm.CallCount("Exec"), "installer runs despite the marker")
}

func TestEnsureFastPath_MarkerWithoutImportCheckReinstalls(t *testing.T) {
	cfg := testConfig(t)
	cfg.FastPath.ImportCheck = nil
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))
	artifact := hostArtifact()
	require.NoError(t, writeExtensionMarker(cfg.Model.Root, artifact))
	pm := &process.MockManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			return &process.Outcome{}, nil
		},
	}
	p := New(cfg, NewState(), nil, pm, nil, nil)

	assert.True(t, p.EnsureFastPath(context.Background(), artifact))
	assert.Equal(t, 0, pm.CallCount("Run"))
	assert.Equal(t, 1, pm.CallCount("Exec"))
}

func TestVerifyExtension(t *testing.T) {
	ctx := context.Background()
	pm := &process.MockManager{RunFunc: importSucceeds}

	assert.ErrorIs(t, VerifyExtension(ctx, pm, nil), ErrNoImportCheck)
	assert.NoError(t, VerifyExtension(ctx, pm, []string{"python3", "-c", "import flash_attn"}))

	calls := pm.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "python3", calls[0].Name)
	assert.Equal(t, []string{"-c", "import flash_attn"}, calls[0].Args)
}

func TestEnsureFastPath_FrozenState(t *testing.T) {
	cfg := testConfig(t)
	pm := &process.MockManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			return &process.Outcome{}, nil
		},
	}
	state := NewState()
	state.Freeze()
	p := New(cfg, state, nil, pm, nil, nil)

	assert.False(t, p.EnsureFastPath(context.Background(), hostArtifact()))
	assert.False(t, state.ExtensionInstalled())
}

// =============================================================================
// Setup / LoadState Tests
// =============================================================================

func TestSetup_FreezesAndDegrades(t *testing.T) {
	cfg := testConfig(t)
	pm := &process.MockManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Outcome, error) {
			return nil, util.NewCommandError(spec.Name, -1, "", errors.New("not found"))
		},
	}
	state := NewState()
	p := New(cfg, state, newFakeTransferer(testSnapshotFiles()), pm, nil, nil)

	err := p.Setup(context.Background())

	require.NoError(t, err, "fast path failure is not fatal")
	assert.True(t, state.Frozen())
	assert.Equal(t, cfg.Model.Root, state.ModelRoot())
	assert.False(t, state.ExtensionInstalled())
}

func TestSetup_ModelFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	hub := newFakeTransferer(nil)
	hub.resolveErr = errors.New("dns failure")
	state := NewState()
	p := New(cfg, state, hub, &process.MockManager{}, nil, nil)

	err := p.Setup(context.Background())

	var perr *ProvisioningError
	assert.ErrorAs(t, err, &perr)
	assert.False(t, state.Frozen())
}

func TestSetup_FastPathDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.FastPath.Enabled = false
	pm := &process.MockManager{}
	p := New(cfg, NewState(), newFakeTransferer(testSnapshotFiles()), pm, nil, nil)

	require.NoError(t, p.Setup(context.Background()))
	assert.Empty(t, pm.GetCalls())
}

func TestLoadState(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))

	ctx := context.Background()
	pm := &process.MockManager{RunFunc: importSucceeds}

	state, err := LoadState(ctx, cfg, pm)
	require.NoError(t, err)
	assert.True(t, state.Frozen())
	assert.Equal(t, cfg.Model.Root, state.ModelRoot())
	assert.False(t, state.ExtensionInstalled())
	assert.Equal(t, 0, pm.CallCount("Run"), "no marker, no import check")

	require.NoError(t, writeExtensionMarker(cfg.Model.Root, DefaultFastPathArtifact))
	state, err = LoadState(ctx, cfg, pm)
	require.NoError(t, err)
	assert.True(t, state.ExtensionInstalled())
}

func TestLoadState_StaleMarker(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Model.Root, 0755))
	require.NoError(t, writeExtensionMarker(cfg.Model.Root, DefaultFastPathArtifact))
	pm := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, util.NewCommandError(name, 1, "No module named 'flash_attn'", nil)
		},
	}

	state, err := LoadState(context.Background(), cfg, pm)

	require.NoError(t, err)
	assert.False(t, state.ExtensionInstalled())
}
