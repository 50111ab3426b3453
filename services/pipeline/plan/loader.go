// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/loomworks-ai/loom/pkg/validation"
)

// Warning is a non-fatal plan irregularity. The plan still loads; callers
// should surface warnings and treat affected groups with reduced trust.
type Warning struct {
	// UnitID is the unit the warning concerns (may be empty for
	// group-level warnings).
	UnitID string

	// GroupID is the group the warning concerns.
	GroupID string

	// Message describes the irregularity.
	Message string
}

// String renders the warning for logs.
func (w Warning) String() string {
	if w.UnitID != "" {
		return fmt.Sprintf("group %s unit %s: %s", w.GroupID, w.UnitID, w.Message)
	}
	return fmt.Sprintf("group %s: %s", w.GroupID, w.Message)
}

// Load reads, parses, and validates an execution plan document.
//
// Description:
//
//	Load is the single fatal gate of a run: a document that cannot be
//	parsed or fails structural validation returns an error and nothing
//	runs. Irregular but usable declarations (dependencies on unknown
//	units, dependencies reaching into a later phase) come back as
//	warnings instead, keeping the plan loadable per the degraded-order
//	policy.
//
// Inputs:
//
//	path - Filesystem path of the YAML plan document.
//
// Outputs:
//
//	*ExecutionPlan - The loaded, read-only plan.
//	[]Warning - Non-fatal irregularities found during validation.
//	error - Non-nil if the document is unusable.
func Load(path string) (*ExecutionPlan, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading plan document: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates an execution plan from raw YAML bytes.
func Parse(data []byte) (*ExecutionPlan, []Warning, error) {
	var p ExecutionPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, nil, fmt.Errorf("parsing plan document: %w", err)
	}
	if len(p.Phases) == 0 {
		return nil, nil, ErrEmptyPlan
	}

	if err := validator.New().Struct(&p); err != nil {
		return nil, nil, fmt.Errorf("validating plan document: %w", err)
	}

	warnings, err := finalize(&p)
	if err != nil {
		return nil, nil, err
	}
	return &p, warnings, nil
}

// finalize stamps derived fields (Phase, Ordinal) onto groups and units,
// enforces identifier uniqueness, and collects dependency warnings.
func finalize(p *ExecutionPlan) ([]Warning, error) {
	var warnings []Warning

	unitPhase := make(map[string]int)
	groupSeen := make(map[string]bool)

	lastPhase := 0
	ordinal := 0
	for i := range p.Phases {
		phase := &p.Phases[i]
		if phase.Number <= lastPhase {
			return nil, fmt.Errorf("%w: phase %d follows phase %d", ErrPhaseOrder, phase.Number, lastPhase)
		}
		lastPhase = phase.Number

		for j := range phase.Groups {
			group := &phase.Groups[j]
			if err := validation.ValidateIdentifier(group.ID); err != nil {
				return nil, fmt.Errorf("group identifier: %w", err)
			}
			if groupSeen[group.ID] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateGroup, group.ID)
			}
			groupSeen[group.ID] = true
			group.Phase = phase.Number
			group.Ordinal = ordinal
			ordinal++

			for k := range group.Units {
				unit := &group.Units[k]
				if err := validation.ValidateIdentifier(unit.ID); err != nil {
					return nil, fmt.Errorf("unit identifier: %w", err)
				}
				if _, dup := unitPhase[unit.ID]; dup {
					return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, unit.ID)
				}
				unitPhase[unit.ID] = phase.Number
				unit.Phase = phase.Number
			}
		}
	}

	// Dependency declarations are capability claims from upstream tooling
	// and are assumed mostly correct: irregular ones degrade to warnings.
	for _, g := range p.OrderedGroups() {
		for _, u := range g.Units {
			for _, dep := range u.DependsOn {
				depPhase, ok := unitPhase[dep]
				switch {
				case !ok:
					warnings = append(warnings, Warning{
						UnitID:  u.ID,
						GroupID: g.ID,
						Message: fmt.Sprintf("depends on unknown unit %q (ignored)", dep),
					})
				case depPhase > u.Phase:
					warnings = append(warnings, Warning{
						UnitID:  u.ID,
						GroupID: g.ID,
						Message: fmt.Sprintf("depends on unit %q in later phase %d (ignored)", dep, depPhase),
					})
				}
			}
		}
		for _, dep := range g.DependsOnGroups {
			if !groupSeen[dep] {
				warnings = append(warnings, Warning{
					GroupID: g.ID,
					Message: fmt.Sprintf("depends on unknown group %q (ignored)", dep),
				})
			}
		}
	}

	return warnings, nil
}
