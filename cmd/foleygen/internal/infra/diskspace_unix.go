// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// availableDiskSpace returns free bytes on the filesystem holding path.
// A path that does not exist yet is measured at its nearest existing parent.
func availableDiskSpace(path string) (int64, error) {
	checkPath := path
	for checkPath != "" && checkPath != "/" {
		if _, err := os.Stat(checkPath); err == nil {
			break
		}
		checkPath = filepath.Dir(checkPath)
	}
	if checkPath == "" {
		checkPath = "/"
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(checkPath, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", checkPath, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
