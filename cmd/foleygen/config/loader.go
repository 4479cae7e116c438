// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvModelPath = "MODEL_PATH"
	EnvToolDir   = "FOLEY_TOOL_DIR"
	EnvOutputDir = "FOLEY_OUTPUT_DIR"
	EnvHubToken  = "HF_TOKEN"
	EnvHubURL    = "FOLEY_HUB_URL"

	// EnvLegacyModelPath is the name older container images export.
	// MODEL_PATH wins when both are set.
	EnvLegacyModelPath = "HIFIFILEY_MODEL_PATH"
)

// Options controls Load.
type Options struct {
	// Path is the YAML file. Empty uses DefaultPath().
	Path string

	// EnvFiles are dotenv files to read. Missing files are skipped.
	// Nil means [".env"].
	EnvFiles []string

	// LookupEnv replaces os.LookupEnv. Used by tests.
	LookupEnv func(string) (string, bool)
}

// DefaultPath returns ~/.foleygen/foleygen.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".foleygen", "foleygen.yaml"), nil
}

// Load builds a validated FoleyConfig.
//
// # Description
//
// Starts from DefaultConfig, decodes the YAML file on top when it exists
// (unknown keys are rejected), then applies dotenv values and finally the
// real environment. Paths are expanded and made absolute.
//
// # Inputs
//
//   - opts: Where to read from. Zero value is valid.
//
// # Outputs
//
//   - *FoleyConfig: Ready for use
//   - error: Unreadable or invalid file, or a failed Validate()
//
// # Examples
//
//	cfg, err := config.Load(config.Options{Path: flagConfig})
//	if err != nil {
//	    return err
//	}
func Load(opts Options) (*FoleyConfig, error) {
	cfg := DefaultConfig()

	path := opts.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}

	dotenv, err := readEnvFiles(opts.EnvFiles)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	applyEnv(&cfg, func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes DefaultConfig() to path, creating parent directories.
// An existing file is left untouched and reported as created=false.
func WriteDefault(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks struct tags and cross-field rules.
func (c *FoleyConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !filepath.IsAbs(c.Model.Root) {
		return fmt.Errorf("invalid config: model.root must be absolute, got %q", c.Model.Root)
	}
	return nil
}

func decodeStrict(data []byte, cfg *FoleyConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if files == nil {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(present...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env files %v: %w", present, err)
	}
	return values, nil
}

func applyEnv(cfg *FoleyConfig, lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	set(&cfg.Model.Root, EnvModelPath, EnvLegacyModelPath)
	set(&cfg.Tool.Dir, EnvToolDir)
	set(&cfg.Generation.OutputDir, EnvOutputDir)
	set(&cfg.Hub.Token, EnvHubToken)
	set(&cfg.Hub.URL, EnvHubURL)
}

func (c *FoleyConfig) normalize() error {
	for _, p := range []*string{&c.Model.Root, &c.Tool.Dir, &c.Generation.OutputDir, &c.Logging.Dir, &c.Telemetry.MetricsFile, &c.Telemetry.TraceFile} {
		if *p == "" {
			continue
		}
		expanded := expandHome(*p)
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("failed to resolve path %q: %w", *p, err)
		}
		*p = abs
	}
	c.Hub.URL = strings.TrimRight(c.Hub.URL, "/")
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
