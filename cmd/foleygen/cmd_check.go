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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/infra"
	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/provision"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the tool, model and accelerator and print a diagnostic report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			state, err := provision.LoadState(cmd.Context(), a.cfg, a.pm)
			if err != nil {
				return withExit(ExitFailure, err)
			}
			checker := infra.NewChecker(a.cfg, state, a.pm, a.logger)

			report := checker.Diagnose(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			if !report.OK() {
				return reported(ExitFailure, errors.New("prerequisite checks failed"))
			}
			return nil
		},
	}
}
