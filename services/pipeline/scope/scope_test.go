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
	"reflect"
	"strings"
	"testing"

	"github.com/loomworks-ai/loom/services/pipeline/plan"
)

func testGroup() *plan.Group {
	return &plan.Group{
		ID:    "g1.foo",
		Phase: 1,
		Units: []plan.Unit{
			{
				ID:     "u.foo",
				Action: plan.ActionGenerate,
				Contracts: []plan.OutputContract{
					{Template: "src/area/foo/{{name}}.java"},
					{Template: "test/area/foo/{{name}}Test.java"},
				},
			},
			{
				ID:     "u.foo-config",
				Action: plan.ActionGenerate,
				Contracts: []plan.OutputContract{
					{Template: "src/area/foo/config/settings.yaml"},
					{Template: "pom.xml"},
				},
			},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Bucket
	}{
		{"src/area/foo/Widget.java", BucketSource},
		{"test/area/foo/WidgetTest.java", BucketTest},
		{"src/area/foo/WidgetTest.java", BucketTest},
		{"src/area/foo/widget_test.go", BucketTest},
		{"src/area/foo/config.yaml", BucketResource},
		{"src/area/foo/schema.sql", BucketResource},
		{"pom.xml", BucketRootFile},
		{"src/area/pom.xml", BucketResource},
	}

	for _, tt := range tests {
		if got := Classify(tt.path, "pom.xml"); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDerive(t *testing.T) {
	vars := map[string]string{"name": "Widget"}

	set, warnings := Derive(testGroup(), vars, "pom.xml")

	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if set.GroupID != "g1.foo" {
		t.Errorf("GroupID = %q, want g1.foo", set.GroupID)
	}

	want := []AllowedPrefix{
		{Prefix: "pom.xml", Bucket: BucketRootFile},
		{Prefix: "src/area/foo", Bucket: BucketSource},
		{Prefix: "src/area/foo/config", Bucket: BucketResource},
		{Prefix: "test/area/foo", Bucket: BucketTest},
	}
	if !reflect.DeepEqual(set.Prefixes, want) {
		t.Errorf("Prefixes = %v, want %v", set.Prefixes, want)
	}
}

func TestDerive_Idempotent(t *testing.T) {
	vars := map[string]string{"name": "Widget"}

	first, _ := Derive(testGroup(), vars, "pom.xml")
	second, _ := Derive(testGroup(), vars, "pom.xml")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Derive not idempotent: %v vs %v", first, second)
	}
}

func TestDerive_UnresolvableContractWarnsAndContinues(t *testing.T) {
	set, warnings := Derive(testGroup(), nil, "pom.xml")

	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 (both {{name}} contracts)", warnings)
	}
	// The resolvable contracts still bound the write surface.
	if len(set.Prefixes) != 2 {
		t.Errorf("Prefixes = %v, want the 2 fully-literal contracts", set.Prefixes)
	}
}

func TestFilter_ScenarioAcceptTwoRejectLeak(t *testing.T) {
	vars := map[string]string{"name": "Foo"}
	set, _ := Derive(testGroup(), vars, "pom.xml")

	candidates := []Artifact{
		{Path: "src/area/foo/Foo.java", Content: "class Foo {}", GroupID: "g1.foo"},
		{Path: "test/area/foo/FooTest.java", Content: "class FooTest {}", GroupID: "g1.foo"},
		{Path: "other/leak.ext", Content: "leak", GroupID: "g1.foo"},
	}

	accepted, rejected := Filter(candidates, &set)

	if len(accepted) != 2 {
		t.Fatalf("accepted = %d, want 2", len(accepted))
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(rejected))
	}
	if rejected[0].Path != "other/leak.ext" {
		t.Errorf("rejection path = %q, want other/leak.ext", rejected[0].Path)
	}
	if rejected[0].ScopePath != "other" {
		t.Errorf("rejection scope path = %q, want other", rejected[0].ScopePath)
	}
	if len(rejected[0].NearestPrefixes) == 0 {
		t.Error("rejection should carry nearest allowed prefixes for audit")
	}
}

func TestFilter_Total(t *testing.T) {
	vars := map[string]string{"name": "Foo"}
	set, _ := Derive(testGroup(), vars, "pom.xml")

	candidates := []Artifact{
		{Path: "src/area/foo/A.java"},
		{Path: "/etc/passwd"},
		{Path: "../escape.java"},
		{Path: "src/area/foo/deep/nested/B.java"},
		{Path: "pom.xml"},
		{Path: ""},
	}

	accepted, rejected := Filter(candidates, &set)

	if len(accepted)+len(rejected) != len(candidates) {
		t.Fatalf("accepted(%d) + rejected(%d) != candidates(%d)",
			len(accepted), len(rejected), len(candidates))
	}

	// accepted must be a subset of candidates by path.
	candidatePaths := make(map[string]bool)
	for _, c := range candidates {
		candidatePaths[c.Path] = true
	}
	for _, a := range accepted {
		if !candidatePaths[a.Path] {
			t.Errorf("accepted path %q not among candidates", a.Path)
		}
	}
}

func TestFilter_CrossUnitPrefixSharingAccepted(t *testing.T) {
	// Output attributed to one unit but matching another unit's contract
	// prefix is acceptable: contracts are unioned per group.
	vars := map[string]string{"name": "Foo"}
	set, _ := Derive(testGroup(), vars, "pom.xml")

	candidates := []Artifact{
		{Path: "src/area/foo/config/extra.yaml", UnitID: "u.foo", GroupID: "g1.foo"},
	}

	accepted, rejected := Filter(candidates, &set)
	if len(accepted) != 1 || len(rejected) != 0 {
		t.Errorf("cross-unit artifact should be accepted, got accepted=%d rejected=%d",
			len(accepted), len(rejected))
	}
}

func TestFilter_TraversalRejected(t *testing.T) {
	vars := map[string]string{"name": "Foo"}
	set, _ := Derive(testGroup(), vars, "pom.xml")

	candidates := []Artifact{
		{Path: "src/area/foo/../../../escape.java"},
	}

	accepted, rejected := Filter(candidates, &set)
	if len(accepted) != 0 {
		t.Fatal("traversal path must never be accepted")
	}
	if !strings.Contains(rejected[0].Reason, "invalid path") {
		t.Errorf("reason = %q, want invalid path", rejected[0].Reason)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	vars := map[string]string{"name": "Foo"}
	set, _ := Derive(testGroup(), vars, "pom.xml")

	candidates := []Artifact{
		{Path: "src/area/foo/Foo.java"},
		{Path: "other/leak.ext"},
	}

	a1, r1 := Filter(candidates, &set)
	a2, r2 := Filter(candidates, &set)

	if !reflect.DeepEqual(a1, a2) || !reflect.DeepEqual(r1, r2) {
		t.Error("Filter must be deterministic on identical input")
	}
}
