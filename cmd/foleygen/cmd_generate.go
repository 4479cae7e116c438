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
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/generation"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/provision"
	"github.com/AleutianAI/foleygen/pkg/ux"
)

type generateOptions struct {
	req         generation.Request
	interactive bool
	json        bool
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	g := &generateOptions{req: generation.DefaultRequest()}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a foley soundtrack from a text prompt",
		Example: `  foleygen generate --prompt "A cat walking on a wooden floor"
  foleygen generate --prompt "Rain on a tin roof" --duration 12 --seed 42 --json
  foleygen generate --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			return runGenerate(cmd, a, g)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&g.req.Prompt, "prompt", "p", "", "text prompt describing the sound")
	f.StringVar(&g.req.NegativePrompt, "negative-prompt", "", "sounds to avoid")
	f.IntVar(&g.req.DurationSeconds, "duration", g.req.DurationSeconds, "video length in seconds (4-16)")
	f.StringVar(&g.req.Resolution, "resolution", g.req.Resolution, "resolution: "+strings.Join(generation.Resolutions, ", "))
	f.Int64Var(&g.req.Seed, "seed", g.req.Seed, "random seed, -1 lets the tool choose")
	f.IntVar(&g.req.InferenceSteps, "steps", g.req.InferenceSteps, "inference steps (20-100)")
	f.Float64Var(&g.req.GuidanceScale, "guidance", g.req.GuidanceScale, "guidance scale (1.0-20.0)")
	f.BoolVarP(&g.interactive, "interactive", "i", false, "fill in the request with a form")
	f.BoolVar(&g.json, "json", false, "print the result as JSON")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, g *generateOptions) error {
	state, err := provision.LoadState(cmd.Context(), a.cfg, a.pm)
	if err != nil {
		return withExit(ExitFailure, err)
	}

	checker := infra.NewChecker(a.cfg, state, a.pm, a.logger)
	if err := checker.VerifyToolInstall(); err != nil {
		a.logger.Error("tool installation missing", "error", err)
		ux.Error(infra.FullError(err))
		return reported(ExitFailure, err)
	}
	if err := checker.Check(cmd.Context()); err != nil {
		ux.Error(infra.FullError(err))
		return reported(ExitFailure, err)
	}

	req := g.req
	if g.interactive {
		if !ux.IsInteractive() {
			return withExit(ExitUsage, errors.New("--interactive needs a terminal on stdin and stdout"))
		}
		if err := runForm(&req); err != nil {
			return withExit(ExitUsage, err)
		}
	}

	orch := generation.New(a.cfg, state, a.pm, a.metrics, a.logger)

	var res generation.Result
	if g.json {
		res = orch.Generate(cmd.Context(), req)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return withExit(ExitFailure, err)
		}
	} else {
		spin := ux.NewSpinner("Generating foley audio")
		spin.Start()
		res = orch.Generate(cmd.Context(), req)
		spin.Stop()
		printResult(res)
	}

	switch {
	case res.Kind == generation.KindValidation:
		return reported(ExitUsage, res.Err())
	case !res.Success:
		return reported(ExitFailure, res.Err())
	}
	return nil
}

func printResult(res generation.Result) {
	fields := []ux.Field{
		{Label: "Kind", Value: string(res.Kind)},
		{Label: "Video", Value: res.VideoArtifact},
		{Label: "Audio", Value: res.AudioArtifact},
	}
	if len(res.MissingArtifacts) > 0 {
		fields = append(fields, ux.Field{Label: "Missing", Value: strings.Join(res.MissingArtifacts, ", ")})
	}
	fields = append(fields,
		ux.Field{Label: "Took", Value: res.Duration.Round(time.Millisecond).String()},
		ux.Field{Label: "Request", Value: res.RequestID},
	)
	ux.Panel(res.Message, !res.Success, fields...)
}
