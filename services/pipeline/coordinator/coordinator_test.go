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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomworks-ai/loom/services/pipeline/oracle"
	"github.com/loomworks-ai/loom/services/pipeline/plan"
	"github.com/loomworks-ai/loom/services/pipeline/trace"
)

const testPlanYAML = `
name: demo-service
phases:
  - number: 1
    groups:
      - id: g1.domain
        units:
          - id: u.widget
            action: generate
            contracts:
              - template: "src/{{base}}/domain/Widget.java"
  - number: 2
    groups:
      - id: g2.repository
        depends_on: [g1.domain]
        units:
          - id: u.widget-repo
            action: generate
            depends_on: [u.widget]
            contracts:
              - template: "src/{{base}}/repository/WidgetRepository.java"
              - template: "test/{{base}}/repository/WidgetRepositoryTest.java"
`

const widgetResponse = `{"files": [{"path": "src/com/acme/domain/Widget.java", "content": "package com.acme.domain;\n\npublic class Widget {\n}"}]}`

const repoResponse = `{"files": [
  {"path": "src/com/acme/repository/WidgetRepository.java", "content": "package com.acme.repository;\n\npublic interface WidgetRepository {\n}"},
  {"path": "test/com/acme/repository/WidgetRepositoryTest.java", "content": "package com.acme.repository;\n\npublic class WidgetRepositoryTest {\n}"}
]}`

const repoResponseWithLeak = `{"files": [
  {"path": "src/com/acme/repository/WidgetRepository.java", "content": "package com.acme.repository;\n\npublic interface WidgetRepository {\n}"},
  {"path": "test/com/acme/repository/WidgetRepositoryTest.java", "content": "package com.acme.repository;\n\npublic class WidgetRepositoryTest {\n}"},
  {"path": "other/leak.ext", "content": "should not be written"}
]}`

func loadTestPlan(t *testing.T, yaml string) *plan.ExecutionPlan {
	t.Helper()
	p, warnings, err := plan.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("plan.Parse() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("plan.Parse() warnings = %v", warnings)
	}
	return p
}

func testVars() map[string]string {
	return map[string]string{"base": "com/acme"}
}

func TestCoordinator_RunHappyPathWithLeak(t *testing.T) {
	out := t.TempDir()
	orc := oracle.NewScriptedOracle(widgetResponse, repoResponseWithLeak)

	c, err := New(Config{Vars: testVars(), OutputDir: out}, loadTestPlan(t, testPlanYAML), orc, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(summary.Groups) != 2 {
		t.Fatalf("summary has %d groups, want 2", len(summary.Groups))
	}

	g1 := summary.Groups[0]
	if g1.GroupID != "g1.domain" || g1.Status != StatusSuccess {
		t.Errorf("g1 = %+v, want g1.domain success", g1)
	}
	if g1.Accepted != 1 || g1.Rejected != 0 || g1.Repair != RepairNotNeeded {
		t.Errorf("g1 counts = %+v", g1)
	}

	g2 := summary.Groups[1]
	if g2.Status != StatusPartial {
		t.Errorf("g2 status = %v, want partial (leak rejected)", g2.Status)
	}
	if g2.Accepted != 2 || g2.Rejected != 1 {
		t.Errorf("g2 accepted/rejected = %d/%d, want 2/1", g2.Accepted, g2.Rejected)
	}
	if summary.Succeeded != 1 || summary.Partial != 1 || summary.Failed != 0 {
		t.Errorf("summary counts = %+v", summary)
	}

	// Accepted artifacts persisted, the leak was not.
	if _, err := os.Stat(filepath.Join(out, "src", "com", "acme", "domain", "Widget.java")); err != nil {
		t.Errorf("Widget.java not persisted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "other", "leak.ext")); !os.IsNotExist(err) {
		t.Errorf("leak.ext should not exist, stat err = %v", err)
	}

	// The second generation call saw the first group's catalog.
	calls := orc.Calls()
	if len(calls) != 2 {
		t.Fatalf("oracle called %d times, want 2", len(calls))
	}
	if !strings.Contains(calls[1].Prompt, "com.acme.domain.Widget") {
		t.Error("g2 prompt should reference the catalogued Widget symbol")
	}
	if strings.Contains(calls[0].Prompt, "com.acme.domain.Widget") {
		t.Error("g1 prompt should not contain its own yet-to-exist symbol")
	}
}

func TestCoordinator_GenerationFailureIsIsolated(t *testing.T) {
	out := t.TempDir()
	orc := oracle.NewScriptedOracle(
		"I would rather describe the design in prose today.",
		repoResponse,
	)

	c, err := New(Config{Vars: testVars(), OutputDir: out}, loadTestPlan(t, testPlanYAML), orc, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Groups[0].Status != StatusFailed {
		t.Errorf("g1 status = %v, want failed on unparseable generation", summary.Groups[0].Status)
	}
	if summary.Groups[0].Error == "" {
		t.Error("failed group should carry an error message")
	}
	// The pipeline continued to the second group.
	if summary.Groups[1].Status != StatusSuccess {
		t.Errorf("g2 status = %v, want success", summary.Groups[1].Status)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Errorf("summary counts = %+v", summary)
	}
}

const singleGroupPlanYAML = `
name: single
phases:
  - number: 1
    groups:
      - id: g1.domain
        units:
          - id: u.widget
            action: generate
            contracts:
              - template: "src/{{base}}/domain/Widget.java"
`

func TestCoordinator_RepairExhaustedMarksPartial(t *testing.T) {
	out := t.TempDir()
	orc := oracle.NewScriptedOracle(
		widgetResponse,
		"no fix", "still no fix", "cannot fix",
	)

	c, err := New(Config{
		Vars:         testVars(),
		OutputDir:    out,
		BuildCommand: []string{"false"},
		Toolchain:    "generic",
	}, loadTestPlan(t, singleGroupPlanYAML), orc, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	g1 := summary.Groups[0]
	if g1.Repair != RepairExhausted {
		t.Errorf("repair = %v, want exhausted", g1.Repair)
	}
	if g1.Status != StatusPartial {
		t.Errorf("status = %v, want partial (accepted artifacts, exhausted repair)", g1.Status)
	}
	if orc.CallCount() != 4 {
		t.Errorf("oracle called %d times, want 1 generation + 3 corrections", orc.CallCount())
	}
}

func TestCoordinator_RepairPassesWithSucceedingBuild(t *testing.T) {
	out := t.TempDir()
	orc := oracle.NewScriptedOracle(widgetResponse)

	c, err := New(Config{
		Vars:         testVars(),
		OutputDir:    out,
		BuildCommand: []string{"true"},
	}, loadTestPlan(t, singleGroupPlanYAML), orc, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Groups[0].Repair != RepairPassed {
		t.Errorf("repair = %v, want passed", summary.Groups[0].Repair)
	}
	if summary.Groups[0].Status != StatusSuccess {
		t.Errorf("status = %v, want success", summary.Groups[0].Status)
	}
}

func TestCoordinator_RecordsTraceArtifacts(t *testing.T) {
	out := t.TempDir()
	rec, err := trace.NewRecorder(t.TempDir(), "run-test")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	orc := oracle.NewScriptedOracle(widgetResponse)

	c, err := New(Config{
		RunID:     "run-test",
		Vars:      testVars(),
		OutputDir: out,
	}, loadTestPlan(t, singleGroupPlanYAML), orc, rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, rel := range []string{
		"summary.json",
		filepath.Join("groups", "g1.domain", "allowed_paths.json"),
		filepath.Join("groups", "g1.domain", "generation.json"),
		filepath.Join("groups", "g1.domain", "catalog.json"),
		filepath.Join("groups", "g1.domain", "rejections.json"),
	} {
		if _, err := os.Stat(filepath.Join(rec.Dir(), rel)); err != nil {
			t.Errorf("trace artifact %s missing: %v", rel, err)
		}
	}
}
