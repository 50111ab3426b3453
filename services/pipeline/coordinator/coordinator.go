// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator drives a pipeline run end to end.
//
// The drive is single-threaded and synchronous at the group level:
// phases in plan order, groups in resolver order within each phase, and
// group N+1 never starts before group N's scope filtering, catalog
// update, and repair loop have all reached a terminal state. Per-group
// failures are isolated; the run continues so a later failure is never
// masked by an earlier one.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/loomworks-ai/loom/services/pipeline/catalog"
	"github.com/loomworks-ai/loom/services/pipeline/extract"
	"github.com/loomworks-ai/loom/services/pipeline/oracle"
	"github.com/loomworks-ai/loom/services/pipeline/plan"
	"github.com/loomworks-ai/loom/services/pipeline/repair"
	"github.com/loomworks-ai/loom/services/pipeline/resolver"
	"github.com/loomworks-ai/loom/services/pipeline/scope"
	"github.com/loomworks-ai/loom/services/pipeline/trace"
)

// =============================================================================
// CONFIGURATION AND REPORTS
// =============================================================================

// Config configures a pipeline run.
type Config struct {
	// RunID identifies the run. Empty means a generated UUID.
	RunID string

	// Vars are the run's variable bindings for contract templates.
	Vars map[string]string

	// RootFileName is the project-root singleton filename for scope
	// classification. Empty means scope.DefaultRootFileName.
	RootFileName string

	// OutputDir is the artifact tree root; accepted artifacts are
	// persisted under it and the build command runs in it.
	OutputDir string

	// BuildCommand is the target project's build/verify invocation.
	// Empty disables the repair loop.
	BuildCommand []string

	// SuccessMarker optionally decides build success by output content.
	SuccessMarker string

	// Toolchain selects the repair loop's build-log parser.
	Toolchain string

	// StyleRules is caller-supplied consistency guidance, passed to the
	// oracle verbatim on every request.
	StyleRules string

	// MaxRepairIterations bounds each group's repair session. Zero means
	// repair.DefaultMaxIterations.
	MaxRepairIterations int
}

// GroupStatus classifies a group's outcome.
type GroupStatus string

const (
	// StatusSuccess means every artifact was accepted and the build, if
	// run, passed.
	StatusSuccess GroupStatus = "success"

	// StatusPartial means artifacts were accepted but some were rejected
	// or repair was exhausted.
	StatusPartial GroupStatus = "partial"

	// StatusFailed means generation failed or nothing was accepted.
	StatusFailed GroupStatus = "failed"
)

// RepairOutcome classifies a group's repair loop result.
type RepairOutcome string

const (
	// RepairNotNeeded means no build command was configured or there was
	// nothing to verify.
	RepairNotNeeded RepairOutcome = "not-needed"

	// RepairPassed means the build verified, possibly after corrections.
	RepairPassed RepairOutcome = "passed"

	// RepairExhausted means the iteration bound was reached with the
	// build still failing.
	RepairExhausted RepairOutcome = "exhausted"
)

// GroupReport is one group's roll-up in the pipeline summary.
type GroupReport struct {
	GroupID          string        `json:"group_id"`
	Status           GroupStatus   `json:"status"`
	Accepted         int           `json:"accepted"`
	Rejected         int           `json:"rejected"`
	Repair           RepairOutcome `json:"repair"`
	CatalogConflicts int           `json:"catalog_conflicts,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// Summary is the single record produced at run completion.
type Summary struct {
	RunID     string        `json:"run_id"`
	PlanName  string        `json:"plan_name"`
	Groups    []GroupReport `json:"groups"`
	Succeeded int           `json:"succeeded"`
	Partial   int           `json:"partial"`
	Failed    int           `json:"failed"`
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns one run of one execution plan.
//
// # Thread Safety
//
// Not safe for concurrent use. The coordinator is the single writer of
// the artifact tree and the catalog store for the run's duration.
type Coordinator struct {
	cfg      Config
	plan     *plan.ExecutionPlan
	oracle   oracle.Oracle
	store    *catalog.Store
	recorder *trace.Recorder

	ordinal int
}

// New creates a coordinator for one run.
//
// Inputs:
//
//	cfg - Run configuration.
//	p - The loaded execution plan.
//	orc - The generation/correction oracle; must be non-nil.
//	rec - Optional trace recorder; nil disables artifact recording.
//
// Outputs:
//
//	*Coordinator - The ready coordinator.
//	error - Non-nil when the plan or oracle is missing.
func New(cfg Config, p *plan.ExecutionPlan, orc oracle.Oracle, rec *trace.Recorder) (*Coordinator, error) {
	if p == nil {
		return nil, fmt.Errorf("coordinator requires an execution plan")
	}
	if orc == nil {
		return nil, fmt.Errorf("coordinator requires an oracle")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.RootFileName == "" {
		cfg.RootFileName = scope.DefaultRootFileName
	}
	return &Coordinator{
		cfg:      cfg,
		plan:     p,
		oracle:   orc,
		store:    catalog.NewStore(),
		recorder: rec,
	}, nil
}

// RunID returns the run identifier.
func (c *Coordinator) RunID() string {
	return c.cfg.RunID
}

// Run drives the plan to completion and returns the pipeline summary.
//
// Description:
//
//	Iterates phases in order; within each phase, groups execute in the
//	dependency resolver's deterministic order. Each group runs the full
//	per-group sequence (scope derivation, generation, filtering,
//	persistence, catalog update, repair) before the next group starts.
//	A failed group is reported and skipped over, never fatal.
//
// Outputs:
//
//	*Summary - Per-group statuses and counts.
//	error - Non-nil only on context cancellation or a trace failure.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: c.cfg.RunID, PlanName: c.plan.Name}

	slog.Info("Starting pipeline run",
		"run_id", c.cfg.RunID,
		"plan", c.plan.Name,
		"phases", len(c.plan.Phases),
		"units", c.plan.UnitCount(),
	)

	for i := range c.plan.Phases {
		phase := &c.plan.Phases[i]
		ordered, warnings := c.orderGroups(phase)
		for _, w := range warnings {
			slog.Warn("Degraded group ordering", "phase", phase.Number, "cycle", w.String())
		}

		for _, group := range ordered {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			report := c.runGroup(ctx, group, orderWarningsFor(group.ID, warnings))
			summary.Groups = append(summary.Groups, report)
			switch report.Status {
			case StatusSuccess:
				summary.Succeeded++
			case StatusPartial:
				summary.Partial++
			default:
				summary.Failed++
			}
		}
	}

	if c.recorder != nil {
		if err := c.recorder.Summary(summary); err != nil {
			return summary, fmt.Errorf("recording pipeline summary: %w", err)
		}
	}

	slog.Info("Pipeline run finished",
		"run_id", c.cfg.RunID,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
	)
	return summary, nil
}

// orderGroups resolves one phase's group order.
func (c *Coordinator) orderGroups(phase *plan.Phase) ([]*plan.Group, []resolver.Warning) {
	items := make([]resolver.Item, 0, len(phase.Groups))
	byID := make(map[string]*plan.Group, len(phase.Groups))
	for i := range phase.Groups {
		g := &phase.Groups[i]
		items = append(items, resolver.Item{ID: g.ID, DependsOn: g.DependsOnGroups})
		byID[g.ID] = g
	}

	order, warnings := resolver.Order(items)
	ordered := make([]*plan.Group, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, byID[id])
	}
	return ordered, warnings
}

// orderWarningsFor returns cycle-warning strings involving the group.
func orderWarningsFor(groupID string, warnings []resolver.Warning) []string {
	var out []string
	for _, w := range warnings {
		for _, member := range w.Members {
			if member == groupID {
				out = append(out, "degraded ordering: "+w.String())
				break
			}
		}
	}
	return out
}

// =============================================================================
// PER-GROUP EXECUTION
// =============================================================================

// runGroup executes one group's full sequence and rolls it up.
func (c *Coordinator) runGroup(ctx context.Context, group *plan.Group, warnings []string) GroupReport {
	ordinal := c.ordinal
	c.ordinal++

	report := GroupReport{GroupID: group.ID, Repair: RepairNotNeeded, Warnings: warnings}
	log := slog.With("run_id", c.cfg.RunID, "group", group.ID)
	log.Info("Starting group", "ordinal", ordinal, "units", len(group.Units))

	// Scope derivation.
	set, scopeWarnings := scope.Derive(group, c.cfg.Vars, c.cfg.RootFileName)
	report.Warnings = append(report.Warnings, scopeWarnings...)
	for _, w := range scopeWarnings {
		log.Warn("Scope derivation warning", "detail", w)
	}
	if c.recorder != nil {
		if err := c.recorder.AllowedPaths(group.ID, &set); err != nil {
			log.Warn("Failed to record allowed paths", "error", err)
		}
	}

	// Generation.
	doc, err := c.generate(ctx, group, ordinal, &set)
	if err != nil {
		log.Error("Generation failed, skipping group", "error", err)
		report.Status = StatusFailed
		report.Error = err.Error()
		return report
	}

	// Scope filtering.
	candidates := make([]scope.Artifact, 0, len(doc.Files))
	for _, f := range doc.Files {
		candidates = append(candidates, scope.Artifact{Path: f.Path, Content: f.Content, GroupID: group.ID})
	}
	accepted, rejected := scope.Filter(candidates, &set)
	report.Accepted = len(accepted)
	report.Rejected = len(rejected)
	for _, rej := range rejected {
		log.Warn("Artifact rejected", "path", rej.Path, "reason", rej.Reason, "nearest", rej.NearestPrefixes)
	}
	if c.recorder != nil {
		if err := c.recorder.Rejections(group.ID, rejected); err != nil {
			log.Warn("Failed to record rejections", "error", err)
		}
	}

	if len(accepted) == 0 {
		report.Status = StatusFailed
		report.Error = "no artifacts accepted"
		return report
	}

	// Persistence.
	if err := c.persist(accepted); err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		return report
	}

	// Catalog update.
	entries := catalog.Extract(group.ID, accepted, c.cfg.RootFileName)
	conflicts := c.store.Record(group.ID, ordinal, entries, group.HasTransformUnit())
	report.CatalogConflicts = len(conflicts)
	for _, conflict := range conflicts {
		log.Warn("Catalog conflict", "symbol", conflict.FQName, "first_group", conflict.FirstGroupID)
	}
	if c.recorder != nil {
		if gc, ok := c.store.CatalogFor(group.ID); ok {
			if err := c.recorder.Catalog(group.ID, gc); err != nil {
				log.Warn("Failed to record catalog", "error", err)
			}
		}
	}

	// Repair.
	report.Repair, err = c.repairGroup(ctx, group)
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		return report
	}

	switch {
	case report.Rejected == 0 && report.Repair != RepairExhausted:
		report.Status = StatusSuccess
	default:
		report.Status = StatusPartial
	}
	log.Info("Group finished",
		"status", report.Status,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"repair", report.Repair,
	)
	return report
}

// generate performs the group's single generation call and parses the
// response. An unparseable response fails the group; generation, unlike
// repair, has no further local recovery.
func (c *Coordinator) generate(ctx context.Context, group *plan.Group, ordinal int, set *scope.AllowedPathSet) (*extract.Document, error) {
	prior := c.store.AssembleContextFor(ordinal)
	req := oracle.Request{
		Kind:    oracle.KindGeneration,
		RunID:   c.cfg.RunID,
		GroupID: group.ID,
		Prompt:  generationPrompt(group, c.cfg.Vars, prior, set, c.cfg.StyleRules),
	}

	resp, err := c.oracle.Generate(ctx, req)
	if err != nil {
		c.recordGeneration(group.ID, trace.Exchange{Request: req, Error: err.Error()})
		return nil, fmt.Errorf("generation call failed: %w", err)
	}

	result, parseErr := extract.Parse(resp)
	ex := trace.Exchange{Request: req, Response: resp}
	if parseErr != nil {
		ex.Error = parseErr.Error()
		c.recordGeneration(group.ID, ex)
		return nil, fmt.Errorf("generation response unparseable: %w", parseErr)
	}
	ex.ParseStrategy = string(result.Strategy)
	c.recordGeneration(group.ID, ex)
	return result.Doc, nil
}

// repairGroup runs the group's repair session when a build command is
// configured.
func (c *Coordinator) repairGroup(ctx context.Context, group *plan.Group) (RepairOutcome, error) {
	if len(c.cfg.BuildCommand) == 0 {
		return RepairNotNeeded, nil
	}

	runner, err := repair.NewExecRunner(c.cfg.BuildCommand, c.cfg.OutputDir, c.cfg.SuccessMarker)
	if err != nil {
		return RepairNotNeeded, err
	}
	session, err := repair.NewSession(repair.Config{
		RunID:         c.cfg.RunID,
		GroupID:       group.ID,
		Workdir:       c.cfg.OutputDir,
		Toolchain:     c.cfg.Toolchain,
		StyleRules:    c.cfg.StyleRules,
		MaxIterations: c.cfg.MaxRepairIterations,
	}, runner, c.oracle, c.recorder)
	if err != nil {
		return RepairNotNeeded, err
	}

	outcome, err := session.Run(ctx)
	if err != nil {
		return RepairNotNeeded, fmt.Errorf("repair session: %w", err)
	}
	if outcome.State == repair.StateExhausted {
		return RepairExhausted, nil
	}
	return RepairPassed, nil
}

// persist writes accepted artifacts under the output directory.
func (c *Coordinator) persist(accepted []scope.Artifact) error {
	for _, art := range accepted {
		full := filepath.Join(c.cfg.OutputDir, art.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
			return fmt.Errorf("creating directory for %s: %w", art.Path, err)
		}
		content := repair.NormalizeContent(art.Content)
		if err := os.WriteFile(full, []byte(content), 0640); err != nil {
			return fmt.Errorf("writing %s: %w", art.Path, err)
		}
	}
	return nil
}

// recordGeneration persists the generation exchange when tracing.
func (c *Coordinator) recordGeneration(groupID string, ex trace.Exchange) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Generation(groupID, ex); err != nil {
		slog.Warn("Failed to record generation exchange", "group", groupID, "error", err)
	}
}
