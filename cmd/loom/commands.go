// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loomworks-ai/loom/cmd/loom/config"
	"github.com/loomworks-ai/loom/pkg/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// --- Global Command Variables ---
var (
	varFlags  []string
	outputDir string
	traceDir  string
	runIDFlag string

	rootCmd = &cobra.Command{
		Use:   "loom",
		Short: "A cli to run LLM-driven code synthesis pipelines",
		Long: `Loom coordinates phased code synthesis: it orders units by their
declared dependencies, scopes what each group may write, catalogs the
symbols earlier groups produced, and drives a bounded build-repair loop
over the generated project.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			logger := logging.New(logging.Config{
				Level:   logging.ParseLevel(config.Global.Logging.Level),
				LogDir:  config.Global.Logging.Dir,
				Service: "loom",
				JSON:    config.Global.Logging.JSON,
			})
			slog.SetDefault(logger.Slog())
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run [plan.yaml]",
		Short: "Execute an execution plan against the configured oracle",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipeline, // Defined in cmd_run.go
	}

	planCmd = &cobra.Command{
		Use:   "plan [plan.yaml]",
		Short: "Validate a plan and print its resolved ordering without executing",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanCheck, // Defined in cmd_plan.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the loom version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("loom", Version)
		},
	}
)

func init() {
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable binding key=value (repeatable, overrides config vars)")
	runCmd.Flags().StringVar(&outputDir, "output", "", "artifact output directory (overrides config)")
	runCmd.Flags().StringVar(&traceDir, "trace-dir", "", "trace artifact directory (overrides config)")
	runCmd.Flags().StringVar(&runIDFlag, "run-id", "", "run identifier (default: generated UUID)")

	planCmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable binding key=value (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}
