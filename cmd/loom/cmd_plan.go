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

	"github.com/spf13/cobra"

	"github.com/loomworks-ai/loom/cmd/loom/config"
	"github.com/loomworks-ai/loom/services/pipeline/plan"
	"github.com/loomworks-ai/loom/services/pipeline/resolver"
	"github.com/loomworks-ai/loom/services/pipeline/scope"
)

// runPlanCheck loads a plan and prints its resolved ordering and derived
// scopes without calling the oracle or writing anything.
func runPlanCheck(cmd *cobra.Command, args []string) error {
	p, warnings, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}

	vars, err := mergeVars(config.Global.Vars, varFlags)
	if err != nil {
		return err
	}

	cmd.Printf("Plan %q: %d phases, %d units\n", p.Name, len(p.Phases), p.UnitCount())
	for _, w := range warnings {
		cmd.Printf("  warning: unit=%s group=%s %s\n", w.UnitID, w.GroupID, w.Message)
	}

	rootFile := config.Global.Pipeline.RootFileName
	for i := range p.Phases {
		phase := &p.Phases[i]
		cmd.Printf("\nPhase %d:\n", phase.Number)

		items := make([]resolver.Item, 0, len(phase.Groups))
		byID := make(map[string]*plan.Group, len(phase.Groups))
		for j := range phase.Groups {
			g := &phase.Groups[j]
			items = append(items, resolver.Item{ID: g.ID, DependsOn: g.DependsOnGroups})
			byID[g.ID] = g
		}
		order, cycles := resolver.Order(items)
		for _, c := range cycles {
			cmd.Printf("  cycle warning: %s\n", c.String())
		}

		for _, id := range order {
			g := byID[id]
			cmd.Printf("  group %s (%d units)\n", g.ID, len(g.Units))
			set, scopeWarnings := scope.Derive(g, vars, rootFile)
			for _, prefix := range set.PrefixStrings() {
				cmd.Printf("    scope: %s\n", prefix)
			}
			for _, w := range scopeWarnings {
				cmd.Printf("    warning: %s\n", w)
			}
		}
	}
	return nil
}
