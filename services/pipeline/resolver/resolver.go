// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver orders execution items by their declared dependencies.
//
// The resolver produces a total order in which every dependency precedes
// its dependents. Items with no relative constraint are ordered by
// ascending identifier, so repeated runs on identical input yield
// byte-identical orderings.
//
// Cycles do not fail the run. The cyclic remainder is appended in
// ascending-identifier order and flagged with a single warning; callers
// must treat output from flagged items with reduced trust. Dependency
// declarations come from upstream capability claims that are assumed
// mostly correct, so best-effort ordering beats a hard failure.
package resolver

import (
	"fmt"
	"sort"
)

// Item is anything orderable by the resolver: a unit within a group's
// phase, or a group within a phase.
type Item struct {
	// ID is the item's unique identifier.
	ID string

	// DependsOn lists identifiers that must be ordered before this item.
	// References to identifiers absent from the input set are ignored;
	// the plan loader has already warned about them.
	DependsOn []string
}

// Warning flags a degraded ordering decision.
type Warning struct {
	// Members are the identifiers of the cyclic remainder, ascending.
	Members []string
}

// String renders the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("dependency cycle among %v; appended in ascending-identifier order", w.Members)
}

// Order produces a deterministic dependency-respecting total order.
//
// Description:
//
//	Kahn's algorithm with a sorted ready set: at every step the smallest
//	ready identifier is emitted, which makes the order reproducible
//	across runs. If a cycle leaves items unresolved after the main pass,
//	they are appended in ascending-identifier order and exactly one
//	Warning is emitted for the whole remainder.
//
// Inputs:
//
//	items - The items to order. Order of the input slice is irrelevant.
//
// Outputs:
//
//	[]string - Item identifiers in execution order. Always contains every
//	           input identifier exactly once.
//	[]Warning - Empty for acyclic inputs; one entry per cyclic remainder.
func Order(items []Item) ([]string, []Warning) {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	// In-degree counts only dependencies that exist in the input set.
	indegree := make(map[string]int, len(items))
	dependents := make(map[string][]string, len(items))
	for _, it := range items {
		if _, ok := indegree[it.ID]; !ok {
			indegree[it.ID] = 0
		}
		for _, dep := range it.DependsOn {
			if !known[dep] || dep == it.ID {
				continue
			}
			indegree[it.ID]++
			dependents[dep] = append(dependents[dep], it.ID)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(items))
	for len(ready) > 0 {
		// Smallest ready identifier first: the deterministic tie-break.
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		released := make([]string, 0)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sort.Strings(ready)
		}
	}

	var warnings []Warning
	if len(ordered) < len(indegree) {
		emitted := make(map[string]bool, len(ordered))
		for _, id := range ordered {
			emitted[id] = true
		}
		var remainder []string
		for id := range indegree {
			if !emitted[id] {
				remainder = append(remainder, id)
			}
		}
		sort.Strings(remainder)
		ordered = append(ordered, remainder...)
		warnings = append(warnings, Warning{Members: remainder})
	}

	return ordered, warnings
}

// IsValidOrder reports whether order is a valid topological order of
// items: every identifier appears exactly once and no item precedes one
// of its in-set dependencies. Intended for tests and audits.
func IsValidOrder(items []Item, order []string) bool {
	if len(order) != len(items) {
		return false
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	position := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := position[id]; dup || !known[id] {
			return false
		}
		position[id] = i
	}
	for _, it := range items {
		for _, dep := range it.DependsOn {
			if !known[dep] || dep == it.ID {
				continue
			}
			if position[dep] > position[it.ID] {
				return false
			}
		}
	}
	return true
}
