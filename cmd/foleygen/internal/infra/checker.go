// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package infra holds the prerequisite checks run before generation.

Check and VerifyToolInstall gate `foleygen generate`. Diagnose collects the
same facts plus disk space and provisioning details for `foleygen check`.
*/
package infra

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/foleygen/cmd/foleygen/config"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/provision"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

// AcceleratorStatus is the outcome of GPU detection.
type AcceleratorStatus struct {
	Available bool
	Devices   []string
	Detail    string // why it is unavailable
}

// Name returns the first device, or "".
func (a AcceleratorStatus) Name() string {
	if len(a.Devices) == 0 {
		return ""
	}
	return a.Devices[0]
}

// Checker is the prerequisite checker.
//
// # Thread Safety
//
// Safe for concurrent use; it holds no mutable state.
type Checker struct {
	cfg    *config.FoleyConfig
	state  *provision.State
	pm     process.Manager
	logger *slog.Logger
}

// NewChecker creates a Checker.
//
// # Inputs
//
//   - cfg: Loaded configuration
//   - state: Provisioning state; its ModelRoot wins over cfg.Model.Root
//   - pm: Runs nvidia-smi
//   - logger: May be nil
func NewChecker(cfg *config.FoleyConfig, state *provision.State, pm process.Manager, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{cfg: cfg, state: state, pm: pm, logger: logger}
}

// Check verifies accelerator availability (soft) and model presence (hard).
//
// # Description
//
// A missing GPU only logs "CUDA not available, using CPU mode". A model
// root that is missing or not a directory returns *MissingModelError.
//
// # Outputs
//
//   - error: nil or *MissingModelError
func (c *Checker) Check(ctx context.Context) error {
	c.logger.Info("checking prerequisites")

	accel := c.DetectAccelerator(ctx)
	if accel.Available {
		c.logger.Info("CUDA available", "device", accel.Name())
	} else {
		c.logger.Warn("CUDA not available, using CPU mode", "detail", accel.Detail)
	}

	if err := c.checkModelRoot(); err != nil {
		c.logger.Error("model path missing", "path", err.Path, "reason", err.Reason)
		return err
	}

	c.logger.Info("all prerequisites met")
	return nil
}

// VerifyToolInstall returns *MissingToolError if the tool directory is absent.
func (c *Checker) VerifyToolInstall() error {
	dir := c.cfg.Tool.Dir
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &MissingToolError{Path: dir, Reason: "does not exist"}
	case err != nil:
		return &MissingToolError{Path: dir, Reason: err.Error()}
	case !info.IsDir():
		return &MissingToolError{Path: dir, Reason: "is not a directory"}
	}
	return nil
}

// DetectAccelerator asks nvidia-smi for GPU names. It never fails.
func (c *Checker) DetectAccelerator(ctx context.Context) AcceleratorStatus {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()

	out, err := c.pm.Run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		return AcceleratorStatus{Detail: err.Error()}
	}
	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			devices = append(devices, name)
		}
	}
	if len(devices) == 0 {
		return AcceleratorStatus{Detail: "nvidia-smi reported no devices"}
	}
	return AcceleratorStatus{Available: true, Devices: devices}
}

func (c *Checker) modelRoot() string {
	if c.state != nil && c.state.ModelRoot() != "" {
		return c.state.ModelRoot()
	}
	return c.cfg.Model.Root
}

func (c *Checker) checkModelRoot() *MissingModelError {
	root := c.modelRoot()
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &MissingModelError{Path: root, Reason: "does not exist"}
	case err != nil:
		return &MissingModelError{Path: root, Reason: err.Error()}
	case !info.IsDir():
		return &MissingModelError{Path: root, Reason: "is not a directory"}
	}
	if !holdsModelFiles(root) {
		return &MissingModelError{Path: root, Reason: "contains no model files"}
	}
	return nil
}

// holdsModelFiles reports whether root has any entry besides the files
// setup keeps for itself. Weights copied in by hand count.
func holdsModelFiles(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		switch e.Name() {
		case provision.ManifestFileName, provision.LockFileName, provision.ExtensionMarkerFileName:
			continue
		}
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// Diagnose gathers everything `foleygen check` reports. It never fails;
// problems land in the report's Errors and Warnings.
func (c *Checker) Diagnose(ctx context.Context) *DiagnosticReport {
	r := &DiagnosticReport{
		Timestamp:  time.Now(),
		ToolDir:    c.cfg.Tool.Dir,
		Executable: c.cfg.Tool.Executable,
		ModelID:    c.cfg.Model.ID,
		ModelRoot:  c.modelRoot(),
		OutputDir:  c.cfg.Generation.OutputDir,
	}

	accel := c.DetectAccelerator(ctx)
	r.AcceleratorAvailable = accel.Available
	r.AcceleratorDevices = accel.Devices
	if !accel.Available {
		r.Warnings = append(r.Warnings, "CUDA not available, using CPU mode")
	}

	if err := c.VerifyToolInstall(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.ToolInstalled = true
		if len(c.cfg.Tool.ScriptArgs) > 0 {
			script := filepath.Join(c.cfg.Tool.Dir, c.cfg.Tool.ScriptArgs[0])
			if _, err := os.Stat(script); err != nil {
				r.Warnings = append(r.Warnings, "entry script not found: "+script)
			}
		}
	}

	if path, err := c.pm.LookPath(c.cfg.Tool.Executable); err != nil {
		r.Errors = append(r.Errors, "executable not found: "+c.cfg.Tool.Executable)
	} else {
		r.ExecutablePath = path
	}

	if err := c.checkModelRoot(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.ModelPresent = true
		if m, err := provision.LoadManifest(r.ModelRoot); err == nil {
			r.ManifestCommit = m.CommitSHA
			r.ManifestFiles = len(m.Files)
			for _, e := range m.Files {
				r.ModelBytes += e.Size
			}
		} else {
			r.Warnings = append(r.Warnings, "no snapshot manifest; run `foleygen setup` to verify the weights")
		}
	}

	if c.state != nil {
		r.ExtensionInstalled = c.state.ExtensionInstalled()
	}
	if !r.ExtensionInstalled {
		r.Warnings = append(r.Warnings, "fast path extension not installed, generation runs in degraded mode")
	}

	if free, err := availableDiskSpace(r.ModelRoot); err == nil {
		r.DiskFree = free
	} else {
		r.Warnings = append(r.Warnings, err.Error())
	}

	return r
}

// OK reports whether the report has no errors.
func (r *DiagnosticReport) OK() bool {
	return len(r.Errors) == 0
}
