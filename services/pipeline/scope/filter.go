// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scope

import (
	"path"
	"sort"
	"strings"

	"github.com/loomworks-ai/loom/pkg/validation"
)

// Artifact is one oracle-produced file: path, content, and owners.
// An artifact is either accepted (written) or rejected (discarded with a
// logged reason); never partially accepted.
type Artifact struct {
	// Path is the artifact's path relative to the artifact tree root.
	Path string `json:"path"`

	// Content is the full file content.
	Content string `json:"content"`

	// UnitID is the owning unit, when attributable.
	UnitID string `json:"unit_id,omitempty"`

	// GroupID is the owning group.
	GroupID string `json:"group_id"`
}

// Rejection records one discarded artifact for the audit trail.
type Rejection struct {
	// Path is the artifact path as the oracle produced it.
	Path string `json:"path"`

	// ScopePath is the resolved scope path that was checked against the
	// set (directory prefix, or the filename for root-level files).
	ScopePath string `json:"scope_path"`

	// Reason describes why the artifact was discarded.
	Reason string `json:"reason"`

	// NearestPrefixes are the closest allowed prefixes by shared leading
	// path segments, to make audit logs actionable.
	NearestPrefixes []string `json:"nearest_prefixes,omitempty"`
}

// Filter splits candidates into accepted and rejected against the set.
//
// Description:
//
//	Total and side-effect-free: every candidate lands in exactly one of
//	the two outputs, input order is preserved, and nothing is written.
//	Acceptance is independent of the candidate's owning unit; the set is
//	the union of the whole group's contracts. Paths that fail validation
//	(absolute, traversal, malformed) are rejected before any prefix
//	check runs — the oracle is untrusted.
//
// Inputs:
//
//	candidates - Artifacts parsed from the oracle's response.
//	set - The group's AllowedPathSet.
//
// Outputs:
//
//	accepted - Candidates whose scope path is inside the set.
//	rejected - Everything else, each with an audit reason.
func Filter(candidates []Artifact, set *AllowedPathSet) (accepted []Artifact, rejected []Rejection) {
	accepted = make([]Artifact, 0, len(candidates))
	rejected = make([]Rejection, 0)

	for _, cand := range candidates {
		cleaned, err := validation.SanitizeRelPath(cand.Path)
		if err != nil {
			rejected = append(rejected, Rejection{
				Path:   cand.Path,
				Reason: "invalid path: " + err.Error(),
			})
			continue
		}

		scopePath := scopePathFor(cleaned)
		if set.Contains(scopePath) {
			cand.Path = cleaned
			accepted = append(accepted, cand)
			continue
		}

		rejected = append(rejected, Rejection{
			Path:            cand.Path,
			ScopePath:       scopePath,
			Reason:          "outside allowed path set",
			NearestPrefixes: nearestPrefixes(scopePath, set, 3),
		})
	}

	return accepted, rejected
}

// scopePathFor maps an artifact path to the path compared against the
// set: root-level files compare as themselves, everything else by its
// directory.
func scopePathFor(cleaned string) string {
	dir := path.Dir(cleaned)
	if dir == "." {
		return cleaned
	}
	return dir
}

// nearestPrefixes returns up to max allowed prefixes ranked by the number
// of leading path segments shared with the scope path. Ties rank
// ascending by prefix, keeping the output deterministic.
func nearestPrefixes(scopePath string, set *AllowedPathSet, max int) []string {
	segs := strings.Split(scopePath, "/")

	type ranked struct {
		prefix string
		shared int
	}
	rankedPrefixes := make([]ranked, 0, len(set.Prefixes))
	for _, p := range set.Prefixes {
		rankedPrefixes = append(rankedPrefixes, ranked{
			prefix: p.Prefix,
			shared: sharedSegments(segs, strings.Split(p.Prefix, "/")),
		})
	}
	sort.Slice(rankedPrefixes, func(i, j int) bool {
		if rankedPrefixes[i].shared != rankedPrefixes[j].shared {
			return rankedPrefixes[i].shared > rankedPrefixes[j].shared
		}
		return rankedPrefixes[i].prefix < rankedPrefixes[j].prefix
	})

	if len(rankedPrefixes) > max {
		rankedPrefixes = rankedPrefixes[:max]
	}
	out := make([]string, 0, len(rankedPrefixes))
	for _, r := range rankedPrefixes {
		out = append(out, r.prefix)
	}
	return out
}

func sharedSegments(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
