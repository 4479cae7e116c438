// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package infra

import (
	"fmt"
	"strings"
	"time"
)

// DiagnosticReport is everything `foleygen check` prints.
type DiagnosticReport struct {
	Timestamp time.Time

	// Accelerator
	AcceleratorAvailable bool
	AcceleratorDevices   []string

	// Tool
	ToolDir        string
	ToolInstalled  bool
	Executable     string
	ExecutablePath string

	// Model
	ModelID        string
	ModelRoot      string
	ModelPresent   bool
	ManifestCommit string
	ManifestFiles  int
	ModelBytes     int64

	// Runtime
	OutputDir          string
	ExtensionInstalled bool
	DiskFree           int64

	Errors   []string
	Warnings []string
}

// String renders the report for the terminal.
func (r *DiagnosticReport) String() string {
	var sb strings.Builder

	sb.WriteString("=== foleygen Diagnostic Report ===\n")
	sb.WriteString(fmt.Sprintf("Time: %s\n\n", r.Timestamp.Format(time.RFC3339)))

	sb.WriteString("[Accelerator]\n")
	sb.WriteString(fmt.Sprintf("  CUDA:        %s\n", boolToCheck(r.AcceleratorAvailable)))
	for _, d := range r.AcceleratorDevices {
		sb.WriteString(fmt.Sprintf("  Device:      %s\n", d))
	}
	sb.WriteString("\n")

	sb.WriteString("[Tool]\n")
	sb.WriteString(fmt.Sprintf("  Directory:   %s %s\n", r.ToolDir, boolToCheck(r.ToolInstalled)))
	if r.ExecutablePath != "" {
		sb.WriteString(fmt.Sprintf("  Executable:  %s\n", r.ExecutablePath))
	} else {
		sb.WriteString(fmt.Sprintf("  Executable:  %s %s\n", r.Executable, boolToCheck(false)))
	}
	sb.WriteString("\n")

	sb.WriteString("[Model]\n")
	sb.WriteString(fmt.Sprintf("  ID:          %s\n", r.ModelID))
	sb.WriteString(fmt.Sprintf("  Root:        %s %s\n", r.ModelRoot, boolToCheck(r.ModelPresent)))
	if r.ManifestCommit != "" {
		sb.WriteString(fmt.Sprintf("  Commit:      %s\n", r.ManifestCommit))
		sb.WriteString(fmt.Sprintf("  Files:       %d (%s)\n", r.ManifestFiles, formatBytes(r.ModelBytes)))
	}
	sb.WriteString("\n")

	sb.WriteString("[Runtime]\n")
	sb.WriteString(fmt.Sprintf("  Output:      %s\n", r.OutputDir))
	sb.WriteString(fmt.Sprintf("  Fast path:   %s\n", boolToCheck(r.ExtensionInstalled)))
	if r.DiskFree > 0 {
		sb.WriteString(fmt.Sprintf("  Disk free:   %s\n", formatBytes(r.DiskFree)))
	}
	sb.WriteString("\n")

	if len(r.Warnings) > 0 {
		sb.WriteString("[Warnings]\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", w))
		}
		sb.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		sb.WriteString("[Errors]\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", e))
		}
	} else {
		sb.WriteString("[Status] ✓ All checks passed\n")
	}

	return sb.String()
}

func boolToCheck(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
