// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope bounds what each group may write into the artifact tree.
//
// Before generation, the group's declared output contracts are resolved
// into a set of allowed directory prefixes (the AllowedPathSet). After
// generation, every candidate artifact is filtered against that set:
// inside the set it is accepted, outside it is rejected and logged with
// enough context to audit the decision. Contracts are unioned per group,
// not partitioned per unit, because grouped units are synthesized
// holistically and may legitimately cross-reference.
//
// Filtering is total, pure, and deterministic: the same candidates and
// the same set always produce bit-identical accepted/rejected splits.
package scope

import (
	"path"
	"sort"
	"strings"

	"github.com/loomworks-ai/loom/services/pipeline/plan"
)

// Bucket classifies an allowed prefix or artifact into a target area.
type Bucket string

const (
	// BucketSource is the primary source area.
	BucketSource Bucket = "source"

	// BucketTest is the test area.
	BucketTest Bucket = "test"

	// BucketResource is the configuration/resource area.
	BucketResource Bucket = "resource"

	// BucketRootFile is the single well-known project-root file
	// (build manifest or equivalent). Matched exactly, not by prefix.
	BucketRootFile Bucket = "root-file"
)

// DefaultRootFileName is the well-known root filename when the run
// configuration does not override it.
const DefaultRootFileName = "pom.xml"

// AllowedPrefix is one allowed directory prefix (or exact root filename)
// with its classified bucket.
type AllowedPrefix struct {
	// Prefix is a slash-separated directory prefix, or for
	// BucketRootFile the exact filename.
	Prefix string `json:"prefix"`

	// Bucket is the target-area classification of the prefix.
	Bucket Bucket `json:"bucket"`
}

// AllowedPathSet is the set of path prefixes one group may write to.
// It exists only for the lifetime of that group's execution.
type AllowedPathSet struct {
	// GroupID owns this set.
	GroupID string `json:"group_id"`

	// RootFileName is the configured well-known root filename.
	RootFileName string `json:"root_file_name"`

	// Prefixes are sorted ascending and deduplicated.
	Prefixes []AllowedPrefix `json:"prefixes"`
}

// Contains reports whether the set allows writes under the given scope
// path (a directory, or the root filename itself).
func (s *AllowedPathSet) Contains(scopePath string) bool {
	for _, p := range s.Prefixes {
		if p.Bucket == BucketRootFile {
			if scopePath == p.Prefix {
				return true
			}
			continue
		}
		if scopePath == p.Prefix || strings.HasPrefix(scopePath, p.Prefix+"/") {
			return true
		}
	}
	return false
}

// PrefixStrings returns the raw prefixes, ascending.
func (s *AllowedPathSet) PrefixStrings() []string {
	out := make([]string, 0, len(s.Prefixes))
	for _, p := range s.Prefixes {
		out = append(out, p.Prefix)
	}
	return out
}

// Classify assigns a path to a target-area bucket using suffix and
// segment heuristics on the resolved path.
//
// Order matters: the root-file check runs first (exact match at the tree
// root), then test heuristics, then resource extensions. Everything else
// is primary source.
func Classify(resolvedPath, rootFileName string) Bucket {
	if resolvedPath == rootFileName {
		return BucketRootFile
	}
	if isTestPath(resolvedPath) {
		return BucketTest
	}
	if isResourcePath(resolvedPath) {
		return BucketResource
	}
	return BucketSource
}

// isTestPath applies the test-area heuristics: a test/ path segment, a
// _test. infix, or a Test/Tests suffix on the base name.
func isTestPath(p string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if seg == "test" || seg == "tests" {
			return true
		}
	}
	base := path.Base(p)
	if strings.Contains(base, "_test.") {
		return true
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return strings.HasSuffix(stem, "Test") || strings.HasSuffix(stem, "Tests")
}

// resourceExtensions are configuration-style file extensions routed to
// the resource area.
var resourceExtensions = map[string]bool{
	".yaml":       true,
	".yml":        true,
	".json":       true,
	".toml":       true,
	".properties": true,
	".xml":        true,
	".conf":       true,
	".ini":        true,
	".sql":        true,
}

func isResourcePath(p string) bool {
	return resourceExtensions[strings.ToLower(path.Ext(p))]
}

// Derive resolves a group's output contracts into its AllowedPathSet.
//
// Description:
//
//	Each unit contract template is resolved against the run's variable
//	bindings, the filename is stripped to obtain a directory prefix, and
//	the prefix is classified into a bucket. All units' prefixes are
//	unioned. Contracts whose templates cannot resolve are skipped with a
//	warning rather than failing the group: upstream declarations are
//	assumed mostly correct, and a partial set still bounds the write
//	surface.
//
// Inputs:
//
//	group - The group about to execute.
//	vars - The run's variable bindings.
//	rootFileName - Configured root filename; empty selects the default.
//
// Outputs:
//
//	AllowedPathSet - Sorted, deduplicated prefixes for the group.
//	[]string - Human-readable warnings for skipped contracts.
func Derive(group *plan.Group, vars map[string]string, rootFileName string) (AllowedPathSet, []string) {
	if rootFileName == "" {
		rootFileName = DefaultRootFileName
	}

	set := AllowedPathSet{
		GroupID:      group.ID,
		RootFileName: rootFileName,
	}

	var warnings []string
	seen := make(map[AllowedPrefix]bool)

	for _, unit := range group.Units {
		for _, contract := range unit.Contracts {
			resolved, err := plan.ResolveTemplate(contract.Template, vars)
			if err != nil {
				warnings = append(warnings, "unit "+unit.ID+": "+err.Error())
				continue
			}
			resolved = path.Clean(strings.TrimPrefix(resolved, "./"))

			bucket := Classify(resolved, rootFileName)
			prefix := AllowedPrefix{Bucket: bucket}
			if bucket == BucketRootFile {
				prefix.Prefix = resolved
			} else {
				dir := path.Dir(resolved)
				if dir == "." {
					// Contract points at a bare root-level file that is
					// not the well-known root file: allow only that file.
					prefix.Prefix = resolved
					prefix.Bucket = BucketRootFile
				} else {
					prefix.Prefix = dir
				}
			}

			if !seen[prefix] {
				seen[prefix] = true
				set.Prefixes = append(set.Prefixes, prefix)
			}
		}
	}

	sort.Slice(set.Prefixes, func(i, j int) bool {
		if set.Prefixes[i].Prefix != set.Prefixes[j].Prefix {
			return set.Prefixes[i].Prefix < set.Prefixes[j].Prefix
		}
		return set.Prefixes[i].Bucket < set.Prefixes[j].Bucket
	})

	return set, warnings
}
