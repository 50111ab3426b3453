// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repair drives the bounded build-repair loop.
//
// A session verifies the target project with its build command, parses
// structured diagnostics out of the captured log, asks the oracle for a
// targeted correction, applies the returned files or unified diff, and
// verifies again. The iteration bound is the loop's only cancellation
// mechanism; reaching it is a degraded per-group outcome, not a
// pipeline failure.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomworks-ai/loom/pkg/validation"
	"github.com/loomworks-ai/loom/services/pipeline/extract"
	"github.com/loomworks-ai/loom/services/pipeline/oracle"
	"github.com/loomworks-ai/loom/services/pipeline/trace"
)

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is a repair session state.
type State string

const (
	// StateVerifying runs the build command and inspects its outcome.
	StateVerifying State = "verifying"

	// StateAwaitingCorrection holds extracted errors and decides between
	// another correction request and exhaustion.
	StateAwaitingCorrection State = "awaiting_correction"

	// StatePassed is terminal: the build verified successfully.
	StatePassed State = "passed"

	// StateExhausted is terminal: the iteration bound was reached with
	// the build still failing.
	StateExhausted State = "exhausted"
)

// DefaultMaxIterations bounds correction attempts per session.
const DefaultMaxIterations = 3

// Config configures a repair session.
type Config struct {
	// RunID identifies the pipeline run, for logs and oracle requests.
	RunID string

	// GroupID is the group under repair.
	GroupID string

	// Workdir is the target project root; corrected files are written
	// under it.
	Workdir string

	// Toolchain selects the build-log parser ("go", "maven", "gradle",
	// "generic").
	Toolchain string

	// StyleRules is caller-supplied consistency guidance, passed through
	// to the oracle verbatim.
	StyleRules string

	// MaxIterations bounds correction attempts. Zero means
	// DefaultMaxIterations.
	MaxIterations int
}

// Session is a single group's repair loop.
//
// # Thread Safety
//
// Not safe for concurrent use. The single-threaded pipeline schedule
// creates at most one session per group and runs it to a terminal state
// before touching the next group.
type Session struct {
	cfg      Config
	runner   BuildRunner
	oracle   oracle.Oracle
	recorder *trace.Recorder

	state        State
	verifies     int
	corrections  int
	lastErrors   []BuildError
	filesWritten []string
}

// Outcome summarizes a terminal session.
type Outcome struct {
	// State is StatePassed or StateExhausted.
	State State `json:"state"`

	// Verifies is the number of build invocations performed.
	Verifies int `json:"verifies"`

	// Corrections is the number of correction requests issued,
	// including ones whose response could not be parsed.
	Corrections int `json:"corrections"`

	// Errors is the diagnostic set from the final failing verify, empty
	// when the session passed.
	Errors []BuildError `json:"errors,omitempty"`

	// FilesWritten lists every file a correction changed or created, in
	// application order, duplicates preserved across iterations removed.
	FilesWritten []string `json:"files_written,omitempty"`
}

// NewSession creates a repair session in the Verifying state.
//
// Inputs:
//
//	cfg - Session configuration.
//	runner - The build runner; must be non-nil.
//	orc - The correction oracle; must be non-nil.
//	rec - Optional trace recorder; nil disables artifact recording.
//
// Outputs:
//
//	*Session - The ready session.
//	error - Non-nil when runner or oracle is missing.
func NewSession(cfg Config, runner BuildRunner, orc oracle.Oracle, rec *trace.Recorder) (*Session, error) {
	if runner == nil {
		return nil, ErrNoBuildCommand
	}
	if orc == nil {
		return nil, fmt.Errorf("repair session requires an oracle")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Session{
		cfg:      cfg,
		runner:   runner,
		oracle:   orc,
		recorder: rec,
		state:    StateVerifying,
	}, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Run drives the session to a terminal state.
//
// Description:
//
//	Alternates Verifying and AwaitingCorrection until the build passes
//	or the iteration bound is hit. An unparseable correction response
//	consumes the iteration with no file changes; only a build command
//	that cannot run at all, or context cancellation, aborts the session
//	with an error.
//
// Outputs:
//
//	*Outcome - The terminal summary; nil on error.
//	error - ErrSessionTerminal on reuse, otherwise environment errors.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	if s.state != StateVerifying {
		return nil, ErrSessionTerminal
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		passed, err := s.verify(ctx)
		if err != nil {
			return nil, err
		}
		if passed {
			s.state = StatePassed
			slog.Info("Repair session passed",
				"group", s.cfg.GroupID,
				"verifies", s.verifies,
				"corrections", s.corrections,
			)
			return s.outcome(), nil
		}

		s.state = StateAwaitingCorrection
		if s.corrections >= s.cfg.MaxIterations {
			s.state = StateExhausted
			slog.Warn("Repair session exhausted",
				"group", s.cfg.GroupID,
				"max_iterations", s.cfg.MaxIterations,
				"remaining_errors", len(s.lastErrors),
			)
			return s.outcome(), nil
		}

		s.corrections++
		s.requestCorrection(ctx)
		s.state = StateVerifying
	}
}

// verify runs one build and extracts diagnostics on failure.
func (s *Session) verify(ctx context.Context) (bool, error) {
	s.verifies++
	passed, log, err := s.runner.Run(ctx)
	if s.recorder != nil {
		if recErr := s.recorder.BuildLog(s.cfg.GroupID, s.verifies, log); recErr != nil {
			slog.Warn("Failed to record build log", "group", s.cfg.GroupID, "error", recErr)
		}
	}
	if err != nil {
		return false, fmt.Errorf("build command failed to run: %w", err)
	}
	if passed {
		s.lastErrors = nil
		return true, nil
	}

	s.lastErrors = GetErrorParser(s.cfg.Toolchain)(log)
	slog.Info("Build failed",
		"group", s.cfg.GroupID,
		"verify", s.verifies,
		"errors", len(s.lastErrors),
	)
	return false, nil
}

// requestCorrection performs one correction round trip. All failures are
// absorbed: the iteration is consumed and the session verifies again.
func (s *Session) requestCorrection(ctx context.Context) {
	req := oracle.Request{
		Kind:      oracle.KindCorrection,
		RunID:     s.cfg.RunID,
		GroupID:   s.cfg.GroupID,
		Iteration: s.corrections,
		Prompt:    s.correctionPrompt(),
	}

	resp, err := s.oracle.Generate(ctx, req)
	if err != nil {
		s.recordExchange(trace.Exchange{Request: req, Error: err.Error()})
		slog.Warn("Correction call failed, consuming iteration",
			"group", s.cfg.GroupID,
			"iteration", s.corrections,
			"error", err,
		)
		return
	}

	changed, strategy, applyErr := s.applyCorrection(resp)
	ex := trace.Exchange{Request: req, Response: resp, ParseStrategy: strategy}
	if applyErr != nil {
		ex.Error = applyErr.Error()
	}
	s.recordExchange(ex)

	if applyErr != nil {
		slog.Warn("Correction response unusable, consuming iteration",
			"group", s.cfg.GroupID,
			"iteration", s.corrections,
			"error", applyErr,
		)
		return
	}

	for _, path := range changed {
		if !contains(s.filesWritten, path) {
			s.filesWritten = append(s.filesWritten, path)
		}
	}
	slog.Info("Correction applied",
		"group", s.cfg.GroupID,
		"iteration", s.corrections,
		"files", len(changed),
		"strategy", strategy,
	)
}

// applyCorrection routes a response to diff application or whole-file
// replacement.
func (s *Session) applyCorrection(resp string) ([]string, string, error) {
	if LooksLikeUnifiedDiff(resp) {
		changed, err := ApplyUnifiedDiff(s.cfg.Workdir, resp)
		return changed, "unified-diff", err
	}

	result, err := extract.Parse(resp)
	if err != nil {
		return nil, "", err
	}

	var changed []string
	for _, f := range result.Doc.Files {
		cleaned, pathErr := validation.SanitizeRelPath(f.Path)
		if pathErr != nil {
			slog.Warn("Correction returned invalid path, skipping file",
				"group", s.cfg.GroupID,
				"path", f.Path,
				"error", pathErr,
			)
			continue
		}
		if writeErr := writeNormalized(s.cfg.Workdir, cleaned, f.Content); writeErr != nil {
			return changed, string(result.Strategy), writeErr
		}
		changed = append(changed, cleaned)
	}
	return changed, string(result.Strategy), nil
}

// correctionPrompt assembles the error list, the full content of every
// referenced file, and the run's style rules.
func (s *Session) correctionPrompt() string {
	var b strings.Builder
	b.WriteString("The build failed with the following errors:\n\n")
	for _, e := range s.lastErrors {
		if e.Column > 0 {
			fmt.Fprintf(&b, "%s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
		} else if e.Line > 0 {
			fmt.Fprintf(&b, "%s:%d: %s\n", e.File, e.Line, e.Message)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", e.File, e.Message)
		}
	}

	b.WriteString("\nCurrent content of the referenced files:\n")
	for _, file := range ReferencedFiles(s.lastErrors) {
		content, err := os.ReadFile(filepath.Join(s.cfg.Workdir, file))
		if err != nil {
			fmt.Fprintf(&b, "\n--- %s (does not exist yet) ---\n", file)
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", file, content)
	}

	if s.cfg.StyleRules != "" {
		b.WriteString("\nStyle and consistency rules:\n")
		b.WriteString(s.cfg.StyleRules)
		b.WriteString("\n")
	}

	b.WriteString("\nReturn either a JSON document {\"files\": [{\"path\": ..., \"content\": ...}]} with the full corrected files, or a unified diff. You may create new files.\n")
	return b.String()
}

// recordExchange persists the iteration's oracle exchange when tracing.
func (s *Session) recordExchange(ex trace.Exchange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.CorrectionExchange(s.cfg.GroupID, s.corrections, ex); err != nil {
		slog.Warn("Failed to record correction exchange", "group", s.cfg.GroupID, "error", err)
	}
}

func (s *Session) outcome() *Outcome {
	return &Outcome{
		State:        s.state,
		Verifies:     s.verifies,
		Corrections:  s.corrections,
		Errors:       s.lastErrors,
		FilesWritten: s.filesWritten,
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
