// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trace persists per-run audit artifacts.
//
// Every run writes, per group: the resolved allowed-path set, the
// extracted catalog, rejected artifacts, and per-iteration build logs
// and oracle exchanges. Files are write-once and keyed by group
// identifier and iteration number; they support auditing and
// investigation, not resumption of execution.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loomworks-ai/loom/services/pipeline/catalog"
	"github.com/loomworks-ai/loom/services/pipeline/oracle"
	"github.com/loomworks-ai/loom/services/pipeline/scope"
)

// ErrAlreadyRecorded is returned on a second write to the same key.
var ErrAlreadyRecorded = errors.New("trace artifact already recorded")

// Exchange is one persisted oracle request/response pair.
type Exchange struct {
	// Request is the oracle request, prompt included.
	Request oracle.Request `json:"request"`

	// Response is the raw response text ("" when the call failed).
	Response string `json:"response"`

	// ParseStrategy names the extraction strategy that succeeded, or is
	// empty when parsing failed or was not attempted.
	ParseStrategy string `json:"parse_strategy,omitempty"`

	// Error carries the transport or parse error, when any.
	Error string `json:"error,omitempty"`
}

// Recorder writes the run's trace tree under <baseDir>/<runID>/.
//
// # Thread Safety
//
// The single-threaded pipeline schedule is the only writer; the recorder
// adds no locking of its own. Write-once semantics come from O_EXCL
// file creation, so even a misbehaving second writer cannot silently
// overwrite an artifact.
type Recorder struct {
	root string
}

// NewRecorder creates the run's trace directory.
func NewRecorder(baseDir, runID string) (*Recorder, error) {
	root := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	return &Recorder{root: root}, nil
}

// Dir returns the run's trace directory.
func (r *Recorder) Dir() string {
	return r.root
}

// AllowedPaths records a group's resolved allowed-path set.
func (r *Recorder) AllowedPaths(groupID string, set *scope.AllowedPathSet) error {
	return r.writeJSON(filepath.Join("groups", groupID, "allowed_paths.json"), set)
}

// Catalog records a group's extracted symbol catalog.
func (r *Recorder) Catalog(groupID string, gc catalog.GroupCatalog) error {
	return r.writeJSON(filepath.Join("groups", groupID, "catalog.json"), gc)
}

// Rejections records a group's scope-rejected artifacts.
func (r *Recorder) Rejections(groupID string, rejections []scope.Rejection) error {
	return r.writeJSON(filepath.Join("groups", groupID, "rejections.json"), rejections)
}

// BuildLog records the captured build output of one repair iteration.
func (r *Recorder) BuildLog(groupID string, iteration int, log []byte) error {
	return r.writeRaw(filepath.Join("groups", groupID, "repair", fmt.Sprintf("iter_%d", iteration), "build.log"), log)
}

// Generation records the group's initial generation exchange.
func (r *Recorder) Generation(groupID string, ex Exchange) error {
	return r.writeJSON(filepath.Join("groups", groupID, "generation.json"), ex)
}

// CorrectionExchange records one repair iteration's oracle exchange.
// Iterations count from 1.
func (r *Recorder) CorrectionExchange(groupID string, iteration int, ex Exchange) error {
	return r.writeJSON(filepath.Join("groups", groupID, "repair", fmt.Sprintf("iter_%d", iteration), "exchange.json"), ex)
}

// Summary records the pipeline summary at run completion.
func (r *Recorder) Summary(summary any) error {
	return r.writeJSON("summary.json", summary)
}

// writeJSON marshals v and writes it write-once under the run root.
func (r *Recorder) writeJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trace artifact %s: %w", key, err)
	}
	return r.writeRaw(key, append(data, '\n'))
}

// writeRaw writes bytes write-once under the run root.
func (r *Recorder) writeRaw(key string, data []byte) error {
	full := filepath.Join(r.root, key)
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("creating trace subdirectory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyRecorded, key)
		}
		return fmt.Errorf("creating trace artifact %s: %w", key, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing trace artifact %s: %w", key, err)
	}
	return nil
}
