// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog records the symbols earlier groups produced so later
// groups can reference them by exact name instead of re-declaring them.
//
// Extraction is a bounded, pattern-level heuristic over source text, not
// a parser: per artifact it recognizes at most the outermost
// publicly-visible declaration. Multi-type files and nested public
// declarations are a known limitation and are deliberately not handled.
package catalog

import "fmt"

// Kind is the coarse classification of a catalogued symbol.
type Kind string

const (
	// KindType is a plain class-like type.
	KindType Kind = "type"

	// KindInterface is an interface declaration.
	KindInterface Kind = "interface"

	// KindEnum is an enumeration.
	KindEnum Kind = "enumeration"

	// KindRecord is a record-like value type.
	KindRecord Kind = "record"
)

// Entry is one catalogued symbol. Entries are append-only and globally
// unique by fully-qualified name within a run.
type Entry struct {
	// FQName is the fully-qualified symbol name (namespace + name).
	FQName string `json:"fq_name"`

	// Name is the bare declaration name.
	Name string `json:"name"`

	// Namespace is the declared package/namespace qualifier.
	Namespace string `json:"namespace,omitempty"`

	// Kind is the coarse kind tag.
	Kind Kind `json:"kind"`

	// Construction is a human-readable construction contract, attached
	// heuristically so later groups do not re-derive incompatible access
	// patterns for the same symbol. Empty when no convention matched.
	Construction string `json:"construction,omitempty"`

	// GroupID is the originating group.
	GroupID string `json:"group_id"`

	// SourcePath is the artifact the entry was extracted from.
	SourcePath string `json:"source_path"`
}

// GroupCatalog is the catalog of one group, persisted per group and
// assembled in deterministic order for later groups.
type GroupCatalog struct {
	// GroupID owns the catalog.
	GroupID string `json:"group_id"`

	// Ordinal is the group's position in the run's deterministic order.
	Ordinal int `json:"ordinal"`

	// Entries in extraction order.
	Entries []Entry `json:"entries"`
}

// Conflict reports a later generate group redeclaring a catalogued name.
// Conflicts are warnings at catalog time; if the redeclaration later
// breaks the build it surfaces through the repair loop's ordinary error
// channel.
type Conflict struct {
	// FQName is the redeclared fully-qualified name.
	FQName string `json:"fq_name"`

	// FirstGroupID catalogued the name originally.
	FirstGroupID string `json:"first_group_id"`

	// GroupID attempted the redeclaration.
	GroupID string `json:"group_id"`
}

// String renders the conflict for logs.
func (c Conflict) String() string {
	return fmt.Sprintf("symbol %s already catalogued by group %s, redeclared by generate group %s",
		c.FQName, c.FirstGroupID, c.GroupID)
}
