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

	"github.com/AleutianAI/foleygen/pkg/ux"
)

// newRootCmd builds the command tree.
func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "foleygen",
		Short: "Provision and run HunyuanVideo-Foley audio generation",
		Long: `foleygen downloads the HunyuanVideo-Foley weights, checks the local
environment and runs text-to-foley generation requests through the
HunyuanVideo-Foley tool.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			p := ux.GetPersonality()
			p.Out = cmd.OutOrStdout()
			p.Err = cmd.ErrOrStderr()
			ux.SetPersonality(p)
			ux.InitPersonality()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.foleygen/foleygen.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(newSetupCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}
