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

import "strconv"

// Invocation holds the absolute paths handed to the tool.
type Invocation struct {
	ModelPath   string
	OutputVideo string
	OutputAudio string
}

// BuildArgs maps a validated request to the tool's command line.
//
// # Description
//
// scriptArgs come first (usually the entry script), then one flag per
// request field. --seed is appended only when the request has an explicit
// seed; otherwise the tool picks its own.
//
// # Examples
//
//	args := BuildArgs([]string{"gradio_app.py"}, req, inv)
//	// [gradio_app.py --prompt "A cat on a beach" --negative_prompt "" --video_length 8 ...]
func BuildArgs(scriptArgs []string, req Request, inv Invocation) []string {
	args := make([]string, 0, len(scriptArgs)+20)
	args = append(args, scriptArgs...)
	args = append(args,
		"--prompt", req.Prompt,
		"--negative_prompt", req.NegativePrompt,
		"--video_length", strconv.Itoa(req.DurationSeconds),
		"--resolution", req.Resolution,
		"--num_inference_steps", strconv.Itoa(req.InferenceSteps),
		"--guidance_scale", strconv.FormatFloat(req.GuidanceScale, 'f', -1, 64),
		"--model_path", inv.ModelPath,
		"--output_video", inv.OutputVideo,
		"--output_audio", inv.OutputAudio,
	)
	if req.HasSeed() {
		args = append(args, "--seed", strconv.FormatInt(req.Seed, 10))
	}
	return args
}
