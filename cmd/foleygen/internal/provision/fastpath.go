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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

// ExtensionMarkerFileName records a successful fast path install.
const ExtensionMarkerFileName = ".foleygen-extension.json"

// FastPathArtifact is a pinned, platform-specific extension build.
type FastPathArtifact struct {
	Name     string
	Version  string
	URL      string
	Platform string // GOOS/GOARCH, e.g. linux/amd64
}

// DefaultFastPathArtifact is flash-attention built for CUDA 12, torch 2.8
// and CPython 3.10, the combination the generation tool's image ships.
var DefaultFastPathArtifact = FastPathArtifact{
	Name:     "flash-attn",
	Version:  "2.8.3",
	URL:      "https://github.com/Dao-AILab/flash-attention/releases/download/v2.8.3/flash_attn-2.8.3+cu12torch2.8cxx11abiFALSE-cp310-cp310-linux_x86_64.whl",
	Platform: "linux/amd64",
}

// CurrentPlatform returns runtime.GOOS/runtime.GOARCH.
func CurrentPlatform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// ExtensionMarker is the JSON body of ExtensionMarkerFileName.
type ExtensionMarker struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	URL         string `json:"url"`
	InstalledAt string `json:"installed_at"`
}

// Matches reports whether the marker describes artifact.
func (m *ExtensionMarker) Matches(artifact FastPathArtifact) bool {
	return m.Name == artifact.Name && m.Version == artifact.Version && m.URL == artifact.URL
}

// ReadExtensionMarker reads the marker from root.
func ReadExtensionMarker(root string) (*ExtensionMarker, error) {
	data, err := os.ReadFile(filepath.Join(root, ExtensionMarkerFileName))
	if err != nil {
		return nil, err
	}
	var m ExtensionMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing extension marker: %w", err)
	}
	return &m, nil
}

func writeExtensionMarker(root string, artifact FastPathArtifact) error {
	data, err := json.MarshalIndent(ExtensionMarker{
		Name:        artifact.Name,
		Version:     artifact.Version,
		URL:         artifact.URL,
		InstalledAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(root, ExtensionMarkerFileName), data, 0644)
}

// EnsureFastPath installs artifact on a best-effort basis.
//
// # Description
//
// Returns true when the extension is installed, either now or by an
// earlier setup that left a matching marker. The marker lives with the
// weights while the package lives in the interpreter, so a marker is only
// honored when fast_path.import_check confirms the import. Every failure (wrong
// platform, installer error, timeout) logs a warning and returns false
// with the flag left unset. Generation behaves the same either way, only
// slower.
//
// # Inputs
//
//   - ctx: Bounds the install together with fast_path.timeout
//   - artifact: The pinned build, normally DefaultFastPathArtifact
//
// # Outputs
//
//   - bool: Whether the extension is available
func (p *Provisioner) EnsureFastPath(ctx context.Context, artifact FastPathArtifact) bool {
	log := p.logger.With("extension", artifact.Name, "version", artifact.Version)

	if platform := CurrentPlatform(); artifact.Platform != platform {
		log.Warn("fast path not built for this platform, skipping",
			"artifact_platform", artifact.Platform, "platform", platform)
		return false
	}

	root := p.markerRoot()
	if marker, err := ReadExtensionMarker(root); err == nil && marker.Matches(artifact) {
		verr := VerifyExtension(ctx, p.pm, p.cfg.FastPath.ImportCheck)
		if verr == nil {
			log.Info("fast path already installed", "installed_at", marker.InstalledAt)
			return p.markInstalled(log)
		}
		log.Info("extension marker found but import check failed, reinstalling", "error", verr)
	}

	if len(p.cfg.FastPath.Installer) == 0 {
		log.Warn("no installer configured, skipping fast path")
		return false
	}
	spec := process.Spec{
		Name:    p.cfg.FastPath.Installer[0],
		Args:    append(append([]string{}, p.cfg.FastPath.Installer[1:]...), artifact.URL),
		Timeout: util.EnforceDefaultTimeout(p.cfg.FastPath.Timeout, util.DefaultInstallTimeout),
	}

	log.Info("installing fast path", "command", spec.Name)
	out, err := p.pm.Exec(ctx, spec)
	if err != nil {
		attrs := []any{"error", err}
		if out != nil && out.TimedOut {
			attrs = append(attrs, "timeout", spec.Timeout)
		}
		log.Warn("fast path installation failed, continuing without it", attrs...)
		return false
	}

	if err := writeExtensionMarker(root, artifact); err != nil {
		log.Warn("could not write extension marker", "error", err)
	}
	log.Info("fast path installed")
	return p.markInstalled(log)
}

// VerifyExtension runs check and reports whether it exited 0.
//
// # Outputs
//
//   - error: ErrNoImportCheck for an empty check, otherwise the
//     *util.CommandError from the failed command
func VerifyExtension(ctx context.Context, pm process.Manager, check []string) error {
	if len(check) == 0 {
		return ErrNoImportCheck
	}
	ctx, cancel := context.WithTimeout(ctx, util.DefaultImportCheckTimeout)
	defer cancel()
	_, err := pm.Run(ctx, check[0], check[1:]...)
	return err
}

func (p *Provisioner) markInstalled(log *slog.Logger) bool {
	if err := p.state.SetExtensionInstalled(true); err != nil {
		log.Warn("cannot record fast path", "error", err)
		return false
	}
	p.metrics.SetExtensionInstalled(true)
	return true
}

func (p *Provisioner) markerRoot() string {
	if root := p.state.ModelRoot(); root != "" {
		return root
	}
	return p.cfg.Model.Root
}
