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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/generation"
)

// runForm lets the user edit req in a terminal form. Fields start at req's
// current values.
func runForm(req *generation.Request) error {
	duration := strconv.Itoa(req.DurationSeconds)
	seed := strconv.FormatInt(req.Seed, 10)
	steps := strconv.Itoa(req.InferenceSteps)
	guidance := strconv.FormatFloat(req.GuidanceScale, 'f', -1, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Text prompt").
				Description("Describe the sound to generate.").
				Value(&req.Prompt).
				Validate(notBlank),
			huh.NewInput().
				Title("Negative prompt").
				Description("Sounds to avoid (optional).").
				Value(&req.NegativePrompt),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Duration (seconds)").
				Value(&duration).
				Validate(intBetween(4, 16)),
			huh.NewSelect[string]().
				Title("Resolution").
				Options(huh.NewOptions(generation.Resolutions...)...).
				Value(&req.Resolution),
			huh.NewInput().
				Title("Seed").
				Description("-1 lets the tool choose.").
				Value(&seed).
				Validate(intBetween(-1, math.MaxInt64)),
			huh.NewInput().
				Title("Inference steps").
				Value(&steps).
				Validate(intBetween(20, 100)),
			huh.NewInput().
				Title("Guidance scale").
				Value(&guidance).
				Validate(floatBetween(1, 20)),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("aborted")
		}
		return err
	}

	// The validators above already accepted these.
	req.DurationSeconds, _ = strconv.Atoi(strings.TrimSpace(duration))
	req.Seed, _ = strconv.ParseInt(strings.TrimSpace(seed), 10, 64)
	req.InferenceSteps, _ = strconv.Atoi(strings.TrimSpace(steps))
	req.GuidanceScale, _ = strconv.ParseFloat(strings.TrimSpace(guidance), 64)
	return nil
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func intBetween(lo, hi int64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return errors.New("enter a whole number")
		}
		if v < lo || v > hi {
			if hi == math.MaxInt64 {
				return fmt.Errorf("must be at least %d", lo)
			}
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func floatBetween(lo, hi float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) {
			return errors.New("enter a number")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}
