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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Output file naming.
const (
	BasenamePrefix = "output_"
	VideoExt       = ".mp4"
	AudioSuffix    = "_foley.wav"

	reservationSuffix = ".reserved"
)

// Namer hands out collision-free basenames of the form output_<unix-millis>.
//
// # Description
//
// The tick is the wall clock in milliseconds. A tick at or before the last
// one handed out becomes last+1, so two calls inside the same millisecond
// (or across a clock step backwards) still differ. A name whose video or
// audio file already exists in the output directory is skipped.
//
// Each name is also claimed on disk with an exclusive .<basename>.reserved
// file, so separate foleygen processes sharing an output directory never
// receive the same name. The claim is dropped with Release once the
// run is over.
//
// # Thread Safety
//
// Safe for concurrent use. Safe across processes sharing dir.
type Namer struct {
	mu   sync.Mutex
	last int64

	now func() time.Time
}

// NewNamer creates a Namer on the wall clock.
func NewNamer() *Namer {
	return &Namer{now: time.Now}
}

// Next claims and returns a fresh basename for outputs in dir.
//
// # Outputs
//
//   - string: Basename, reserved until Release
//   - error: When the reservation file cannot be created
func (n *Namer) Next(dir string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tick := n.now().UnixMilli()
	if tick <= n.last {
		tick = n.last + 1
	}
	for ; ; tick++ {
		base := BasenamePrefix + strconv.FormatInt(tick, 10)
		if outputsExist(dir, base) {
			continue
		}
		f, err := os.OpenFile(reservationPath(dir, base), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve output name: %w", err)
		}
		_ = f.Close()
		n.last = tick
		return base, nil
	}
}

// Release drops the claim on basename taken by Next.
func (n *Namer) Release(dir, basename string) {
	_ = os.Remove(reservationPath(dir, basename))
}

// VideoPath returns the video target for basename in dir.
func VideoPath(dir, basename string) string {
	return filepath.Join(dir, basename+VideoExt)
}

// AudioPath returns the audio target for basename in dir.
func AudioPath(dir, basename string) string {
	return filepath.Join(dir, basename+AudioSuffix)
}

func reservationPath(dir, basename string) string {
	return filepath.Join(dir, "."+basename+reservationSuffix)
}

func outputsExist(dir, base string) bool {
	return fileExists(VideoPath(dir, base)) || fileExists(AudioPath(dir, base))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
