// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/foleygen/cmd/foleygen/config"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra/process"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/util"
)

const tracerName = "github.com/AleutianAI/foleygen/generation"

// MetricsRecorder receives one observation per Generate call.
// telemetry.Metrics implements it; nil disables recording.
type MetricsRecorder interface {
	ObserveGeneration(kind string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveGeneration(string, time.Duration) {}

// ModelRootSource yields the provisioned model root. *provision.State
// implements it.
type ModelRootSource interface {
	ModelRoot() string
}

// Orchestrator turns requests into tool runs.
//
// # Description
//
// Holds only read-only configuration plus a Namer, so one Orchestrator
// serves any number of concurrent Generate calls, each in its own process.
// The fast path extension flag is never consulted: behavior is identical
// with or without it.
//
// # Thread Safety
//
// Safe for concurrent use.
type Orchestrator struct {
	toolDir          string
	executable       string
	scriptArgs       []string
	outputDir        string
	timeout          time.Duration
	tailSize         int
	requireArtifacts bool

	models       ModelRootSource
	defaultModel string
	pm           process.Manager
	namer        *Namer
	metrics      MetricsRecorder
	logger       *slog.Logger
}

// New creates an Orchestrator.
//
// # Inputs
//
//   - cfg: Loaded configuration; tool and output paths are already absolute
//   - models: Source of the model root; cfg.Model.Root is used when it is
//     nil or returns ""
//   - pm: Runs the tool
//   - metrics: May be nil
//   - logger: May be nil (slog.Default)
func New(cfg *config.FoleyConfig, models ModelRootSource, pm process.Manager, metrics MetricsRecorder, logger *slog.Logger) *Orchestrator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	outputDir := cfg.Generation.OutputDir
	if outputDir == "" {
		outputDir = cfg.Tool.Dir
	}
	return &Orchestrator{
		toolDir:          cfg.Tool.Dir,
		executable:       cfg.Tool.Executable,
		scriptArgs:       append([]string(nil), cfg.Tool.ScriptArgs...),
		outputDir:        outputDir,
		timeout:          util.EnforceDefaultTimeout(cfg.Generation.Timeout, util.DefaultGenerationTimeout),
		tailSize:         cfg.Generation.StderrTailBytes,
		requireArtifacts: cfg.Generation.RequireArtifacts,
		models:           models,
		defaultModel:     cfg.Model.Root,
		pm:               pm,
		namer:            NewNamer(),
		metrics:          metrics,
		logger:           logger,
	}
}

// Generate runs the tool once for req.
//
// # Description
//
//  1. Validates req. A violation returns KindValidation without spawning.
//  2. Derives a fresh basename and absolute output targets.
//  3. Runs the tool with cmd.Dir set to the tool directory, bounded by the
//     configured timeout. On timeout the whole process group is killed.
//  4. Classifies the exit: non-zero is KindExecution with the stderr tail.
//  5. Checks both outputs; each path is set only when the file exists.
//
// Generate never panics. A recovered panic becomes KindInternal.
//
// # Outputs
//
//   - Result: Always populated. See Result.Err for the typed error.
//
// # Examples
//
//	req := generation.DefaultRequest()
//	req.Prompt = "A cat on a beach"
//	res := orch.Generate(ctx, req)
//	if !res.Success {
//	    fmt.Println(res.Message) // "Video generation failed: CUDA OOM"
//	}
func (o *Orchestrator) Generate(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	res.RequestID = uuid.NewString()
	logger := o.logger.With("request_id", res.RequestID)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "generation.generate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("request.id", res.RequestID)),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("generation panicked", "panic", r, "stack", string(debug.Stack()))
			res = failed(res, KindInternal, fmt.Errorf("internal error: %v", r), fmt.Sprintf("Internal error: %v", r))
		}
		res.Duration = time.Since(start)

		span.SetAttributes(
			attribute.String("generation.kind", string(res.Kind)),
			attribute.Bool("generation.success", res.Success),
		)
		if !res.Success {
			span.SetStatus(codes.Error, res.Message)
		}
		span.End()
		o.metrics.ObserveGeneration(string(res.Kind), res.Duration)

		logger.Info("generation finished",
			"kind", res.Kind,
			"success", res.Success,
			"basename", res.Basename,
			"duration", res.Duration,
		)
	}()

	if err := req.Validate(); err != nil {
		logger.Warn("request rejected", "error", err)
		return failed(res, KindValidation, err, "Invalid request: "+err.Error())
	}

	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return failed(res, KindInternal, err, fmt.Sprintf("Internal error: create output directory: %v", err))
	}

	basename, err := o.namer.Next(o.outputDir)
	if err != nil {
		return failed(res, KindInternal, err, fmt.Sprintf("Internal error: %v", err))
	}
	defer o.namer.Release(o.outputDir, basename)
	res.Basename = basename
	inv := Invocation{
		ModelPath:   o.modelRoot(),
		OutputVideo: VideoPath(o.outputDir, res.Basename),
		OutputAudio: AudioPath(o.outputDir, res.Basename),
	}
	spec := process.Spec{
		Name:     o.executable,
		Args:     BuildArgs(o.scriptArgs, req, inv),
		Dir:      o.toolDir,
		Timeout:  o.timeout,
		TailSize: o.tailSize,
	}
	span.SetAttributes(attribute.String("generation.basename", res.Basename))
	logger.Info("starting generation",
		"basename", res.Basename,
		"duration_seconds", req.DurationSeconds,
		"resolution", req.Resolution,
		"seed", req.Seed,
	)

	out, err := o.pm.Exec(ctx, spec)
	if failedRes, done := o.classify(res, out, err); done {
		return failedRes
	}
	return o.resolveArtifacts(res, inv, logger)
}

// classify maps a finished Exec to a failing Result. done is false only
// for a clean exit.
func (o *Orchestrator) classify(res Result, out *process.Outcome, err error) (Result, bool) {
	switch {
	case out != nil && out.TimedOut:
		terr := &ProcessTimeoutError{Timeout: o.timeout}
		return failed(res, KindTimeout, terr, fmt.Sprintf("Video generation timed out after %s", o.timeout)), true

	case out != nil && out.Canceled:
		cerr := &ProcessExecutionError{ExitCode: out.ExitCode, Stderr: strings.TrimSpace(out.Stderr), Err: context.Canceled}
		return failed(res, KindExecution, cerr, "Video generation canceled"), true

	case err != nil:
		eerr := &ProcessExecutionError{ExitCode: util.ExitCodeOf(err), Stderr: util.ExtractStderr(err), Err: err}
		if out != nil {
			eerr.ExitCode = out.ExitCode
			eerr.Stderr = strings.TrimSpace(out.Stderr)
		}
		detail := eerr.Stderr
		if detail == "" {
			detail = err.Error()
			var cmdErr *util.CommandError
			if errors.As(err, &cmdErr) && cmdErr.Wrapped != nil {
				detail = cmdErr.Wrapped.Error()
			}
		}
		return failed(res, KindExecution, eerr, "Video generation failed: "+detail), true
	}
	return res, false
}

func (o *Orchestrator) resolveArtifacts(res Result, inv Invocation, logger *slog.Logger) Result {
	var missing []string
	if fileExists(inv.OutputVideo) {
		res.VideoArtifact = inv.OutputVideo
	} else {
		missing = append(missing, inv.OutputVideo)
	}
	if fileExists(inv.OutputAudio) {
		res.AudioArtifact = inv.OutputAudio
	} else {
		missing = append(missing, inv.OutputAudio)
	}

	if len(missing) == 0 {
		res.Kind = KindSuccess
		res.Success = true
		res.Message = SuccessMessage
		return res
	}

	aerr := &ArtifactMissingError{Paths: missing}
	res.Kind = KindArtifactMissing
	res.MissingArtifacts = missing
	res.err = aerr
	logger.Warn("tool exited 0 without all outputs", "missing", missing)

	if o.requireArtifacts {
		res.Success = false
		res.Message = "Video generation produced no output: " + filepath.Base(missing[0])
		return res
	}
	res.Success = true
	res.Message = SuccessMessage
	return res
}

func (o *Orchestrator) modelRoot() string {
	if o.models != nil {
		if root := o.models.ModelRoot(); root != "" {
			return root
		}
	}
	return o.defaultModel
}

func failed(res Result, kind Kind, err error, msg string) Result {
	res.Kind = kind
	res.Success = false
	res.Message = msg
	res.VideoArtifact = ""
	res.AudioArtifact = ""
	res.err = err
	return res
}
