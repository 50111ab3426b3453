// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan defines the execution plan loaded at the start of a run:
// phases, groups, units, and their declared output contracts.
//
// The plan is the only input whose failure to load aborts the whole run.
// Everything downstream (cycles, scope violations, oracle misbehavior)
// degrades per group instead.
//
// # Thread Safety
//
// A loaded ExecutionPlan is read-only. All types are safe for concurrent
// read access after Load returns.
package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// ActionKind describes what a unit asks of the oracle.
type ActionKind string

const (
	// ActionGenerate synthesizes new artifacts.
	ActionGenerate ActionKind = "generate"

	// ActionTransform rewrites artifacts produced by earlier groups.
	// Transform units may redeclare catalogued symbol names.
	ActionTransform ActionKind = "transform"
)

// OutputContract declares one output-path template for a unit.
//
// Templates may contain {{var}} placeholders resolved against the run's
// variable bindings, e.g. "src/{{base_package}}/domain/{{name}}.java".
type OutputContract struct {
	// Template is the declared output-path template.
	Template string `yaml:"template" validate:"required"`
}

// Unit is the smallest declared piece of generation or transformation
// work. Units are immutable once loaded.
type Unit struct {
	// ID uniquely identifies the unit within the plan.
	ID string `yaml:"id" validate:"required"`

	// Action is what the unit asks of the oracle.
	Action ActionKind `yaml:"action" validate:"required,oneof=generate transform"`

	// DependsOn lists unit IDs that must be ordered before this unit.
	// Dependencies are restricted to the same or an earlier phase.
	DependsOn []string `yaml:"depends_on"`

	// Contracts are the unit's declared output-path templates.
	Contracts []OutputContract `yaml:"contracts" validate:"required,min=1,dive"`

	// Phase is the phase number the unit belongs to. Populated by the
	// loader from the enclosing phase; not part of the document.
	Phase int `yaml:"-"`
}

// Group is the unit of holistic generation: one or more units executed
// together against a single oracle call.
type Group struct {
	// ID uniquely identifies the group within the plan.
	ID string `yaml:"id" validate:"required"`

	// Units are the units synthesized together in this group.
	Units []Unit `yaml:"units" validate:"required,min=1,dive"`

	// DependsOnGroups lists prior group IDs this group depends on.
	DependsOnGroups []string `yaml:"depends_on"`

	// Phase is the enclosing phase number. Populated by the loader.
	Phase int `yaml:"-"`

	// Ordinal is the group's position in the run's deterministic
	// ordering (phase-major, then document order). Populated by the
	// loader; the catalog and trace layers key on it.
	Ordinal int `yaml:"-"`
}

// UnitIDs returns the IDs of the group's units in document order.
func (g *Group) UnitIDs() []string {
	ids := make([]string, 0, len(g.Units))
	for _, u := range g.Units {
		ids = append(ids, u.ID)
	}
	return ids
}

// HasTransformUnit reports whether any unit in the group is a transform.
func (g *Group) HasTransformUnit() bool {
	for _, u := range g.Units {
		if u.Action == ActionTransform {
			return true
		}
	}
	return false
}

// Phase is one ordered stage of the pipeline.
type Phase struct {
	// Number orders phases. Must be unique and ascending in the document.
	Number int `yaml:"number" validate:"gte=1"`

	// Groups are executed within this phase, ordered by the resolver.
	Groups []Group `yaml:"groups" validate:"required,min=1,dive"`
}

// ExecutionPlan is the full, read-only plan for one run.
type ExecutionPlan struct {
	// Name labels the plan for logs and trace artifacts.
	Name string `yaml:"name" validate:"required"`

	// Phases in ascending order.
	Phases []Phase `yaml:"phases" validate:"required,min=1,dive"`
}

// OrderedGroups returns all groups in deterministic run order
// (phase-major, then document order). The returned pointers alias the
// plan; callers must not mutate them.
func (p *ExecutionPlan) OrderedGroups() []*Group {
	var groups []*Group
	for i := range p.Phases {
		for j := range p.Phases[i].Groups {
			groups = append(groups, &p.Phases[i].Groups[j])
		}
	}
	return groups
}

// GroupByID returns the group with the given ID.
func (p *ExecutionPlan) GroupByID(id string) (*Group, bool) {
	for _, g := range p.OrderedGroups() {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// UnitCount returns the total number of units across all phases.
func (p *ExecutionPlan) UnitCount() int {
	n := 0
	for i := range p.Phases {
		for j := range p.Phases[i].Groups {
			n += len(p.Phases[i].Groups[j].Units)
		}
	}
	return n
}

// =============================================================================
// Template Resolution
// =============================================================================

// placeholderPattern matches {{var}} placeholders in contract templates.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// ResolveTemplate substitutes {{var}} placeholders in a contract template
// against the run's variable bindings.
//
// Inputs:
//
//	template - The declared output-path template.
//	vars - Variable bindings for this run.
//
// Outputs:
//
//	string - The resolved concrete path.
//	error - Non-nil if a placeholder has no binding.
func ResolveTemplate(template string, vars map[string]string) (string, error) {
	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in template %q", ErrUnresolvedVariable, strings.Join(missing, ", "), template)
	}
	return resolved, nil
}
