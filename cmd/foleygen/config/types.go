// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the foleygen configuration.
//
// Values come from four layers, later layers winning:
//
//  1. DefaultConfig()
//  2. YAML file (~/.foleygen/foleygen.yaml or --config)
//  3. .env file in the working directory
//  4. Process environment
//
// The result is passed explicitly into every component constructor.
// Nothing below cmd/foleygen reads the environment on its own.
package config

import (
	"time"
)

// FoleyConfig is the root configuration document.
type FoleyConfig struct {
	// Model: which snapshot to provision and where it lives
	Model ModelConfig `yaml:"model"`

	// Tool: the external generation tool installation
	Tool ToolConfig `yaml:"tool"`

	// Generation: per-request execution policy
	Generation GenerationConfig `yaml:"generation"`

	// FastPath: optional performance extension
	FastPath FastPathConfig `yaml:"fast_path"`

	// Hub: model hub transfer settings
	Hub HubConfig `yaml:"hub"`

	// Telemetry: metrics and trace sinks
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging: console and file logging
	Logging LoggingConfig `yaml:"logging"`
}

type ModelConfig struct {
	ID       string `yaml:"id" validate:"required"`       // e.g. tencent/HunyuanVideo-Foley
	Revision string `yaml:"revision" validate:"required"` // branch, tag or commit
	Root     string `yaml:"root" validate:"required"`     // local snapshot directory
}

type ToolConfig struct {
	Dir        string   `yaml:"dir" validate:"required"`
	Executable string   `yaml:"executable" validate:"required"` // e.g. python3
	ScriptArgs []string `yaml:"script_args"`                    // e.g. ["gradio_app.py"]
}

type GenerationConfig struct {
	// OutputDir receives the artifacts. Defaults to the tool directory,
	// where the tool itself writes when given bare file names. Relative
	// paths are resolved against the working directory at load time.
	OutputDir string `yaml:"output_dir" validate:"required"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// StderrTailBytes caps the stderr kept for failure messages.
	StderrTailBytes int `yaml:"stderr_tail_bytes" validate:"gte=0"`

	// RequireArtifacts turns a missing output file into a failed result.
	RequireArtifacts bool `yaml:"require_artifacts"`
}

type FastPathConfig struct {
	Enabled bool `yaml:"enabled"`

	// Installer is the command prefix; the wheel URL is appended.
	Installer []string `yaml:"installer" validate:"required_if=Enabled true"`

	// ImportCheck exits 0 when the extension is importable in the tool's
	// interpreter. An install marker is only trusted after it passes.
	ImportCheck []string `yaml:"import_check"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type HubConfig struct {
	URL string `yaml:"url" validate:"required,url"`

	// Token is normally supplied through HF_TOKEN rather than the file.
	Token string `yaml:"token,omitempty"`

	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads" validate:"gte=1,lte=64"`
	RequestsPerSecond      float64       `yaml:"requests_per_second" validate:"gte=0"`
	RequestTimeout         time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

type TelemetryConfig struct {
	// MetricsFile receives a Prometheus textfile dump after each command.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// TraceFile receives JSON spans.
	TraceFile string `yaml:"trace_file,omitempty"`

	// OTLPEndpoint ships spans to a collector (host:port, gRPC).
	// Tracing is off when both sinks are empty.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `yaml:"otlp_insecure,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// Default values taken from the tool's published container layout.
const (
	DefaultModelID        = "tencent/HunyuanVideo-Foley"
	DefaultModelRevision  = "main"
	DefaultModelRoot      = "/app/models/HunyuanVideo-Foley"
	DefaultToolDir        = "/app/HunyuanVideo-Foley"
	DefaultToolExecutable = "python3"
	DefaultHubURL         = "https://huggingface.co"
)

func DefaultConfig() FoleyConfig {
	return FoleyConfig{
		Model: ModelConfig{
			ID:       DefaultModelID,
			Revision: DefaultModelRevision,
			Root:     DefaultModelRoot,
		},
		Tool: ToolConfig{
			Dir:        DefaultToolDir,
			Executable: DefaultToolExecutable,
			ScriptArgs: []string{"gradio_app.py"},
		},
		Generation: GenerationConfig{
			OutputDir:       DefaultToolDir,
			Timeout:         300 * time.Second,
			StderrTailBytes: 4 * 1024,
		},
		FastPath: FastPathConfig{
			Enabled:     true,
			Installer:   []string{"python3", "-m", "pip", "install"},
			ImportCheck: []string{"python3", "-c", "import flash_attn"},
			Timeout:     10 * time.Minute,
		},
		Hub: HubConfig{
			URL:                    DefaultHubURL,
			MaxConcurrentDownloads: 4,
			RequestsPerSecond:      8,
			RequestTimeout:         30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
