// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AleutianAI/foleygen/cmd/foleygen/config"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/telemetry"
	"github.com/AleutianAI/foleygen/pkg/logging"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.FoleyConfig
	log     *logging.Logger
	logger  *slog.Logger
	pm      process.Manager
	metrics *telemetry.Metrics

	shutdownTracer telemetry.ShutdownFunc
}

// newApp loads configuration and starts logging and telemetry.
//
// Log lines go to logOut. Errors are startup failures and carry ExitFailure.
func newApp(opts *globalOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(config.Options{Path: opts.configPath})
	if err != nil {
		return nil, withExit(ExitFailure, err)
	}

	levelName := cfg.Logging.Level
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, ok := logging.ParseLevel(levelName)
	if !ok {
		return nil, withExit(ExitUsage, fmt.Errorf("unknown log level %q", levelName))
	}

	log := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "foleygen",
		JSON:    opts.logJSON || cfg.Logging.JSON,
		Output:  logOut,
	})

	shutdown, err := telemetry.InitTracer(context.Background(), telemetry.TracingOptions{
		File:         cfg.Telemetry.TraceFile,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		_ = log.Close()
		return nil, withExit(ExitFailure, err)
	}

	return &app{
		cfg:            cfg,
		log:            log,
		logger:         log.Slog(),
		pm:             process.NewDefaultManager(),
		metrics:        telemetry.NewMetrics(),
		shutdownTracer: shutdown,
	}, nil
}

// close flushes spans, writes the metrics textfile and closes the log.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.shutdownTracer(ctx); err != nil {
		errs = append(errs, err)
	}
	if path := a.cfg.Telemetry.MetricsFile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("telemetry flush failed", "error", err)
	}
	_ = a.log.Close()
}
