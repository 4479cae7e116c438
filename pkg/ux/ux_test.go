// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// usePersonality swaps in level with captured writers for one test.
func usePersonality(t *testing.T, level PersonalityLevel) (out, errOut *bytes.Buffer) {
	t.Helper()
	prev := GetPersonality()
	t.Cleanup(func() { SetPersonality(prev) })

	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	SetPersonality(Personality{Level: level, Out: out, Err: errOut})
	return out, errOut
}

// =============================================================================
// Personality Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"standard": PersonalityStandard,
		"FULL":     PersonalityStandard,
		"min":      PersonalityMinimal,
		"machine":  PersonalityMachine,
		"q":        PersonalityMachine,
		"bogus":    PersonalityStandard,
		"":         PersonalityStandard,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePersonalityLevel(in), in)
	}
}

func TestInitPersonality_Env(t *testing.T) {
	usePersonality(t, PersonalityStandard)
	t.Setenv(PersonalityEnv, "minimal")

	InitPersonality()

	assert.Equal(t, PersonalityMinimal, GetPersonality().Level)
}

func TestSetPersonality_NilWritersDefault(t *testing.T) {
	usePersonality(t, PersonalityStandard)

	SetPersonality(Personality{Level: PersonalityMachine})

	assert.NotNil(t, GetPersonality().Out)
	assert.NotNil(t, GetPersonality().Err)
}

// =============================================================================
// Output Tests
// =============================================================================

func TestMachineOutput(t *testing.T) {
	out, errOut := usePersonality(t, PersonalityMachine)

	Title("ignored")
	Success("done")
	Info("note")
	Warning("careful")
	Error("broken")

	assert.Equal(t, "OK: done\nnote\n", out.String())
	assert.Equal(t, "WARN: careful\nERROR: broken\n", errOut.String())
}

func TestStandardOutput(t *testing.T) {
	out, errOut := usePersonality(t, PersonalityStandard)

	Success("done")
	Warning("careful")
	Error("broken")

	assert.Contains(t, out.String(), "done")
	assert.Contains(t, out.String(), "careful")
	assert.Contains(t, out.String(), "broken")
	assert.Empty(t, errOut.String())
}

func TestPanel(t *testing.T) {
	t.Run("machine", func(t *testing.T) {
		out, _ := usePersonality(t, PersonalityMachine)

		Panel("Generation successful!", false,
			Field{Label: "Video", Value: "/out/a.mp4"},
			Field{Label: "Audio", Value: ""},
		)

		assert.Equal(t, "Generation successful!\nvideo: /out/a.mp4\naudio: \n", out.String())
	})

	t.Run("standard skips empty values", func(t *testing.T) {
		out, _ := usePersonality(t, PersonalityStandard)

		Panel("Video generation failed", true,
			Field{Label: "Kind", Value: "execution"},
			Field{Label: "Video", Value: ""},
		)

		assert.Contains(t, out.String(), "Video generation failed")
		assert.Contains(t, out.String(), "execution")
		assert.Equal(t, 1, strings.Count(out.String(), "Video"))
	})
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconNote} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}

// =============================================================================
// Spinner Tests
// =============================================================================

func TestSpinner_MachineModePrintsOnce(t *testing.T) {
	out, _ := usePersonality(t, PersonalityMachine)

	err := WithSpinner("Generating", func() error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, "PROGRESS: Generating\nOK: Generating\n", out.String())
}

func TestSpinner_Animates(t *testing.T) {
	out, _ := usePersonality(t, PersonalityStandard)

	s := NewSpinner("Downloading")
	s.Start()
	s.Start() // no-op
	time.Sleep(250 * time.Millisecond)
	s.UpdateMessage("Verifying")
	time.Sleep(250 * time.Millisecond)
	s.Stop()
	s.Stop() // no-op

	assert.Contains(t, out.String(), "Downloading")
	assert.Contains(t, out.String(), "Verifying")
	assert.True(t, strings.HasSuffix(out.String(), "\r\033[K"))
}

func TestWithSpinner_Error(t *testing.T) {
	_, errOut := usePersonality(t, PersonalityMachine)
	boom := errors.New("hub unreachable")

	err := WithSpinner("Setup", func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, errOut.String(), "ERROR: Setup: hub unreachable")
}
