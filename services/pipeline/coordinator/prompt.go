// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"fmt"
	"strings"

	"github.com/loomworks-ai/loom/services/pipeline/catalog"
	"github.com/loomworks-ai/loom/services/pipeline/plan"
	"github.com/loomworks-ai/loom/services/pipeline/resolver"
	"github.com/loomworks-ai/loom/services/pipeline/scope"
)

// generationPrompt assembles the request bundle for one group: unit
// descriptors with resolved contracts, the prior groups' catalogs, the
// allowed path set, and the run's style rules.
func generationPrompt(group *plan.Group, vars map[string]string, prior []catalog.GroupCatalog, set *scope.AllowedPathSet, styleRules string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate the artifacts for group %q. The group contains these units, in dependency order:\n\n", group.ID)
	for _, unit := range orderedUnits(group) {
		fmt.Fprintf(&b, "- unit %s (action: %s)\n", unit.ID, unit.Action)
		for _, contract := range unit.Contracts {
			resolved, err := plan.ResolveTemplate(contract.Template, vars)
			if err != nil {
				resolved = contract.Template
			}
			fmt.Fprintf(&b, "  output: %s\n", resolved)
		}
	}

	if len(prior) > 0 {
		b.WriteString("\nSymbols already defined by earlier groups. Reference them by exact name; do not redeclare them:\n")
		for _, gc := range prior {
			for _, entry := range gc.Entries {
				fmt.Fprintf(&b, "- %s (%s)", entry.FQName, entry.Kind)
				if entry.Construction != "" {
					fmt.Fprintf(&b, " [%s]", entry.Construction)
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\nAll output paths must fall under these prefixes:\n")
	for _, prefix := range set.PrefixStrings() {
		fmt.Fprintf(&b, "- %s\n", prefix)
	}

	if styleRules != "" {
		b.WriteString("\nStyle and consistency rules:\n")
		b.WriteString(styleRules)
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with exactly one JSON document of the form {\"files\": [{\"path\": ..., \"content\": ...}]} and nothing else.\n")
	return b.String()
}

// orderedUnits returns the group's units in resolver order so prompt
// text is byte-identical across runs with identical inputs.
func orderedUnits(group *plan.Group) []*plan.Unit {
	items := make([]resolver.Item, 0, len(group.Units))
	byID := make(map[string]*plan.Unit, len(group.Units))
	for i := range group.Units {
		u := &group.Units[i]
		items = append(items, resolver.Item{ID: u.ID, DependsOn: u.DependsOn})
		byID[u.ID] = u
	}

	order, _ := resolver.Order(items)
	out := make([]*plan.Unit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}
