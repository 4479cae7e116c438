// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package util contains leaf utilities shared by the foleygen internals.
//
// Nothing in here imports another internal package.
//
// # Overview
//
//   - Command Errors: [CommandError] carries command, exit code and stderr
//   - Timeouts: [EnforceMinTimeout] and [EnforceDefaultTimeout]
//   - Tail Buffer: [TailBuffer] keeps the last N bytes written to it
//
// # Thread Safety
//
// [CommandError] is immutable. [TailBuffer] is safe for concurrent writes,
// which matters because os/exec may copy stdout and stderr from separate
// goroutines into the same writer.
//
// # Examples
//
//	tail := util.NewTailBuffer(util.DefaultTailSize)
//	cmd.Stderr = tail
//	if err := cmd.Run(); err != nil {
//	    return util.NewCommandError("python3 gradio_app.py", -1, tail.String(), err)
//	}
package util
