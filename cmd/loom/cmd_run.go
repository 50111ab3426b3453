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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomworks-ai/loom/cmd/loom/config"
	"github.com/loomworks-ai/loom/pkg/validation"
	"github.com/loomworks-ai/loom/services/pipeline/coordinator"
	"github.com/loomworks-ai/loom/services/pipeline/oracle"
	"github.com/loomworks-ai/loom/services/pipeline/plan"
	"github.com/loomworks-ai/loom/services/pipeline/trace"
)

// runPipeline executes a plan end to end.
func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := config.Global

	p, warnings, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	for _, w := range warnings {
		slog.Warn("Plan warning", "unit", w.UnitID, "group", w.GroupID, "detail", w.Message)
	}

	vars, err := mergeVars(cfg.Vars, varFlags)
	if err != nil {
		return err
	}

	runID := runIDFlag
	if runID == "" {
		runID = uuid.NewString()
	}

	out := outputDir
	if out == "" {
		out = cfg.Pipeline.OutputDir
	}
	traces := traceDir
	if traces == "" {
		traces = cfg.Pipeline.TraceDir
	}

	styleRules := ""
	if cfg.Pipeline.StyleRulesFile != "" {
		data, err := os.ReadFile(cfg.Pipeline.StyleRulesFile)
		if err != nil {
			return fmt.Errorf("reading style rules: %w", err)
		}
		styleRules = string(data)
	}

	orc, err := oracle.NewOpenAIOracle(oracle.OpenAIConfig{
		Model:             cfg.Oracle.Model,
		BaseURL:           cfg.Oracle.BaseURL,
		APIKeyFile:        cfg.Oracle.APIKeyFile,
		RequestsPerMinute: cfg.Oracle.RequestsPerMinute,
	})
	if err != nil {
		return fmt.Errorf("configuring oracle: %w", err)
	}

	recorder, err := trace.NewRecorder(traces, runID)
	if err != nil {
		return fmt.Errorf("configuring trace recorder: %w", err)
	}

	coord, err := coordinator.New(coordinator.Config{
		RunID:               runID,
		Vars:                vars,
		RootFileName:        cfg.Pipeline.RootFileName,
		OutputDir:           out,
		BuildCommand:        cfg.Pipeline.BuildCommand,
		SuccessMarker:       cfg.Pipeline.SuccessMarker,
		Toolchain:           cfg.Pipeline.Toolchain,
		StyleRules:          styleRules,
		MaxRepairIterations: cfg.Pipeline.MaxRepairIterations,
	}, p, orc, recorder)
	if err != nil {
		return err
	}

	summary, err := coord.Run(cmd.Context())
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d groups failed", summary.Failed, len(summary.Groups))
	}
	return nil
}

// printSummary renders the pipeline summary to the command's stdout.
func printSummary(cmd *cobra.Command, summary *coordinator.Summary) {
	cmd.Printf("Run %s (%s): %d succeeded, %d partial, %d failed\n",
		summary.RunID, summary.PlanName, summary.Succeeded, summary.Partial, summary.Failed)
	for _, g := range summary.Groups {
		cmd.Printf("  %-24s %-8s accepted=%d rejected=%d repair=%s\n",
			g.GroupID, g.Status, g.Accepted, g.Rejected, g.Repair)
		if g.Error != "" {
			cmd.Printf("    error: %s\n", g.Error)
		}
		for _, w := range g.Warnings {
			cmd.Printf("    warning: %s\n", w)
		}
	}
}

// mergeVars layers --var flags over the config's default bindings.
func mergeVars(defaults map[string]string, flags []string) (map[string]string, error) {
	vars := make(map[string]string, len(defaults)+len(flags))
	for k, v := range defaults {
		vars[k] = v
	}
	for _, flag := range flags {
		key, value, found := strings.Cut(flag, "=")
		if !found {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", flag)
		}
		if err := validation.ValidateVarName(key); err != nil {
			return nil, fmt.Errorf("invalid --var name %q: %w", key, err)
		}
		vars[key] = value
	}
	return vars, nil
}
