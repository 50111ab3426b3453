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
	"regexp"
	"strings"

	"github.com/loomworks-ai/loom/services/pipeline/scope"
)

// =============================================================================
// Declaration Patterns
// =============================================================================

// namespacePattern matches the artifact's package/namespace declaration.
var namespacePattern = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;?\s*$`)

// declarationPattern matches the outermost publicly-visible primary-type
// declaration. Modifier noise (final, abstract, sealed, static) between
// the visibility keyword and the kind keyword is tolerated.
var declarationPattern = regexp.MustCompile(
	`(?m)^\s*public\s+(?:(?:final|abstract|sealed|non-sealed|static)\s+)*(class|interface|enum|record)\s+([A-Z]\w*)`)

// kindTags maps declaration keywords to coarse kind tags.
var kindTags = map[string]Kind{
	"class":     KindType,
	"interface": KindInterface,
	"enum":      KindEnum,
	"record":    KindRecord,
}

// Construction-contract notes attached by namespace convention.
const (
	constructionDomainModel = "no public zero-arg construction; obtain instances through the reconstruction factory"
	constructionRepository  = "identifier parameters are value-typed, not primitive strings"
)

// Extract scans a group's accepted artifacts for catalogable symbols.
//
// Description:
//
//	Scans only the artifacts belonging to the given group, never the
//	accumulated output tree. Per artifact at most the first outermost
//	public declaration is recorded; artifacts classified into the test
//	bucket are excluded. The scan is pure text pattern matching and is
//	idempotent: the same accepted set always yields the same entries in
//	the same order.
//
// Inputs:
//
//	groupID - The owning group.
//	artifacts - The group's accepted artifacts, in accepted order.
//	rootFileName - The configured well-known root filename, used for
//	               bucket classification.
//
// Outputs:
//
//	[]Entry - Extracted entries in artifact order.
func Extract(groupID string, artifacts []scope.Artifact, rootFileName string) []Entry {
	if rootFileName == "" {
		rootFileName = scope.DefaultRootFileName
	}

	entries := make([]Entry, 0, len(artifacts))
	for _, art := range artifacts {
		bucket := scope.Classify(art.Path, rootFileName)
		if bucket == scope.BucketTest || bucket == scope.BucketRootFile {
			continue
		}

		entry, ok := extractOne(art)
		if !ok {
			continue
		}
		entry.GroupID = groupID
		entries = append(entries, entry)
	}
	return entries
}

// extractOne pulls the outermost public declaration from one artifact.
func extractOne(art scope.Artifact) (Entry, bool) {
	decl := declarationPattern.FindStringSubmatch(art.Content)
	if decl == nil {
		return Entry{}, false
	}

	namespace := ""
	if ns := namespacePattern.FindStringSubmatch(art.Content); ns != nil {
		namespace = ns[1]
	}

	name := decl[2]
	fqName := name
	if namespace != "" {
		fqName = namespace + "." + name
	}

	return Entry{
		FQName:       fqName,
		Name:         name,
		Namespace:    namespace,
		Kind:         kindTags[decl[1]],
		Construction: constructionFor(namespace),
		SourcePath:   art.Path,
	}, true
}

// constructionFor derives the construction-contract note from namespace
// conventions. These notes exist purely to keep later groups from
// re-deriving incompatible access patterns for the same symbol.
func constructionFor(namespace string) string {
	for _, seg := range strings.Split(namespace, ".") {
		switch seg {
		case "domain", "model":
			return constructionDomainModel
		case "repository", "repositories":
			return constructionRepository
		}
	}
	return ""
}
