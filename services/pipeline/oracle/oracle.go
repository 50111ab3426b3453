// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle abstracts the external generation oracle.
//
// The pipeline treats the oracle as an opaque, non-deterministic
// function from a request to free text. Nothing in this package owns
// prompt content; the coordinator and repair loop assemble prompts and
// this package only transports them.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the oracle package.
var (
	// ErrNoAPIKey is returned when no credential source yields a key.
	ErrNoAPIKey = errors.New("no oracle API key configured")

	// ErrNoResponse is returned when the backend returns no choices.
	ErrNoResponse = errors.New("oracle returned no response")

	// ErrScriptExhausted is returned by the scripted test oracle when
	// all canned responses have been consumed.
	ErrScriptExhausted = errors.New("scripted oracle has no responses left")
)

// RequestKind distinguishes generation calls from repair corrections.
type RequestKind string

const (
	// KindGeneration asks for a group's initial artifacts.
	KindGeneration RequestKind = "generation"

	// KindCorrection asks for targeted fixes during a repair session.
	KindCorrection RequestKind = "correction"
)

// Request is one oracle invocation. The prompt is fully assembled by the
// caller; the metadata fields exist for logging and trace artifacts.
type Request struct {
	// Kind is generation or correction.
	Kind RequestKind `json:"kind"`

	// RunID identifies the pipeline run.
	RunID string `json:"run_id"`

	// GroupID identifies the group the call is made for.
	GroupID string `json:"group_id"`

	// Iteration is the repair iteration for corrections, 0 otherwise.
	Iteration int `json:"iteration"`

	// Prompt is the full request text.
	Prompt string `json:"prompt"`
}

// Oracle is the opaque external generation function.
//
// Implementations must be safe for sequential reuse; the pipeline calls
// Generate one request at a time.
type Oracle interface {
	// Generate sends the request and returns the oracle's raw text.
	//
	// Inputs:
	//   ctx - Context for cancellation.
	//   req - The fully-assembled request.
	//
	// Outputs:
	//   string - The raw response text, unparsed.
	//   error - Non-nil on transport failure or empty response.
	Generate(ctx context.Context, req Request) (string, error)
}

// Describe renders a request identity for logs without its prompt body.
func Describe(req Request) string {
	return fmt.Sprintf("%s group=%s iter=%d run=%s", req.Kind, req.GroupID, req.Iteration, req.RunID)
}
