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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/foleygen/cmd/foleygen/internal/provision"
	"github.com/AleutianAI/foleygen/pkg/ux"
)

func newSetupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download the model snapshot and install the fast path extension",
		Long: `Downloads every file of the configured model revision into the model
root, verifying each against the hub's checksums. Files already present
and verified are skipped, so setup can be re-run to resume or repair.

Then tries to install the pinned flash-attention wheel. Its failure is
reported but does not fail setup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			return runSetup(cmd, a)
		},
	}
}

func runSetup(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	hub := provision.NewHubClient(provision.HubClientConfig{
		BaseURL:           cfg.Hub.URL,
		Token:             cfg.Hub.Token,
		RequestsPerSecond: cfg.Hub.RequestsPerSecond,
		RequestTimeout:    cfg.Hub.RequestTimeout,
	}, a.logger)
	state := provision.NewState()
	p := provision.New(cfg, state, hub, a.pm, a.metrics, a.logger)

	ux.Title("foleygen setup")
	err := ux.WithSpinner("Provisioning "+cfg.Model.ID+" into "+cfg.Model.Root, func() error {
		return p.Setup(cmd.Context())
	})
	if err != nil {
		a.logger.Error("setup failed", "error", err)
		return reported(ExitUsage, err)
	}

	if state.ExtensionInstalled() {
		ux.Success("Fast path extension installed")
	} else {
		ux.Warning("Fast path extension not installed; generation runs in degraded mode")
	}
	return nil
}
