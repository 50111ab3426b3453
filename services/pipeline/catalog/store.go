// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"sort"
	"sync"
)

// Store is the run's append-only symbol catalog, keyed by group.
//
// # Description
//
// The store accumulates one GroupCatalog per executed group and hands
// later groups the cumulative view of everything ordered strictly before
// them. Entries are never removed or mutated; assembled views are
// copies, so callers cannot corrupt the store.
//
// The store is injected by reference into generation and repair calls
// rather than re-derived by re-scanning the output tree, which keeps
// ordering deterministic and avoids filename-set filtering hazards.
//
// # Thread Safety
//
// Safe for concurrent use. The pipeline schedule is single-threaded, but
// the store does not rely on that.
type Store struct {
	mu       sync.RWMutex
	catalogs []GroupCatalog
	origin   map[string]string // fq name → first group ID
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		origin: make(map[string]string),
	}
}

// Record appends a group's catalog to the store.
//
// Description:
//
//	Every entry is recorded, including redeclarations: the catalog
//	reports inconsistencies, it does not auto-correct them. A
//	redeclaration of an already-catalogued name by a group whose action
//	kind allows rewriting (transform) is legitimate; from a generate
//	group it comes back as a Conflict warning. Name origin tracking
//	always keeps the first declaring group.
//
// Inputs:
//
//	groupID - The owning group.
//	ordinal - The group's position in the run's deterministic order.
//	entries - The group's extracted entries.
//	transform - True when the group contains a transform unit, which
//	            permits redeclaration.
//
// Outputs:
//
//	[]Conflict - One conflict per redeclared name from a generate group.
func (s *Store) Record(groupID string, ordinal int, entries []Entry, transform bool) []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conflicts []Conflict
	for i := range entries {
		fq := entries[i].FQName
		first, exists := s.origin[fq]
		if !exists {
			s.origin[fq] = groupID
			continue
		}
		if first != groupID && !transform {
			conflicts = append(conflicts, Conflict{
				FQName:       fq,
				FirstGroupID: first,
				GroupID:      groupID,
			})
		}
	}

	stored := make([]Entry, len(entries))
	copy(stored, entries)
	s.catalogs = append(s.catalogs, GroupCatalog{
		GroupID: groupID,
		Ordinal: ordinal,
		Entries: stored,
	})

	return conflicts
}

// AssembleContextFor returns every recorded catalog ordered strictly
// before the target group, ascending by ordinal.
//
// The assembled view is handed to the next generation call so the oracle
// can reference prior symbols by exact name. Returned catalogs are
// copies; mutating them does not affect the store.
func (s *Store) AssembleContextFor(targetOrdinal int) []GroupCatalog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []GroupCatalog
	for _, gc := range s.catalogs {
		if gc.Ordinal >= targetOrdinal {
			continue
		}
		entries := make([]Entry, len(gc.Entries))
		copy(entries, gc.Entries)
		out = append(out, GroupCatalog{
			GroupID: gc.GroupID,
			Ordinal: gc.Ordinal,
			Entries: entries,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// CatalogFor returns the recorded catalog of one group, if present.
func (s *Store) CatalogFor(groupID string) (GroupCatalog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, gc := range s.catalogs {
		if gc.GroupID == groupID {
			entries := make([]Entry, len(gc.Entries))
			copy(entries, gc.Entries)
			gc.Entries = entries
			return gc, true
		}
	}
	return GroupCatalog{}, false
}

// Origin returns the first group that catalogued a fully-qualified name.
func (s *Store) Origin(fqName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.origin[fqName]
	return g, ok
}

// EntryCount returns the total number of recorded entries.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, gc := range s.catalogs {
		n += len(gc.Entries)
	}
	return n
}
