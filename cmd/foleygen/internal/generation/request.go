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
Package generation turns one validated request into one run of the
HunyuanVideo-Foley tool and classifies the outcome.

The Orchestrator never changes the host working directory. The tool runs
with its installation directory as cmd.Dir and receives absolute model and
output paths, so Generate is safe to call concurrently. Every failure comes
back inside the Result as one of a closed set of Kinds.
*/
package generation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request defaults, matching the interactive form.
const (
	DefaultDurationSeconds = 8
	DefaultResolution      = "512"
	DefaultSeed            = -1
	DefaultInferenceSteps  = 50
	DefaultGuidanceScale   = 7.5
)

// Resolutions lists the accepted Resolution values.
var Resolutions = []string{"256", "512", "768", "1024"}

// Request is one generation request. Treat it as an immutable value.
type Request struct {
	Prompt          string  `json:"prompt" validate:"notblank"`
	NegativePrompt  string  `json:"negativePrompt"`
	DurationSeconds int     `json:"durationSeconds" validate:"gte=4,lte=16"`
	Resolution      string  `json:"resolution" validate:"oneof=256 512 768 1024"`
	Seed            int64   `json:"seed" validate:"gte=-1"` // -1 lets the tool pick
	InferenceSteps  int     `json:"inferenceSteps" validate:"gte=20,lte=100"`
	GuidanceScale   float64 `json:"guidanceScale" validate:"gte=1,lte=20"`
}

// DefaultRequest returns a Request with every field but Prompt defaulted.
func DefaultRequest() Request {
	return Request{
		DurationSeconds: DefaultDurationSeconds,
		Resolution:      DefaultResolution,
		Seed:            DefaultSeed,
		InferenceSteps:  DefaultInferenceSteps,
		GuidanceScale:   DefaultGuidanceScale,
	}
}

// HasSeed reports whether an explicit seed was requested.
func (r Request) HasSeed() bool {
	return r.Seed >= 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks every field. The first violation is returned as a
// *ValidationError naming the field by its JSON name.
//
// # Examples
//
//	req := generation.DefaultRequest()
//	req.DurationSeconds = 20
//	err := req.Validate()
//	// err.Error() == "durationSeconds must be <= 16 (got 20)"
//
// # Limitations
//
//   - NaN guidance fails the range rule since every comparison with NaN is false
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		}
	}
	return &ValidationError{Field: "request", Rule: "invalid", Value: err.Error()}
}
