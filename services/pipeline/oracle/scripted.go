// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"sync"
)

// ScriptedOracle replays canned responses in order and records every
// request it receives. It exists for tests: the pipeline's behavior
// under oracle misbehavior (prose wrapping, garbage, silence) is
// exercised by scripting exactly that.
type ScriptedOracle struct {
	mu        sync.Mutex
	responses []string
	next      int
	calls     []Request
}

// NewScriptedOracle creates a ScriptedOracle with the given responses.
func NewScriptedOracle(responses ...string) *ScriptedOracle {
	return &ScriptedOracle{responses: responses}
}

// Generate returns the next canned response.
//
// Outputs:
//
//	string - The next scripted response.
//	error - ErrScriptExhausted once all responses are consumed.
func (s *ScriptedOracle) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if s.next >= len(s.responses) {
		return "", ErrScriptExhausted
	}
	resp := s.responses[s.next]
	s.next++
	return resp, nil
}

// Calls returns a copy of all recorded requests.
func (s *ScriptedOracle) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of Generate invocations.
func (s *ScriptedOracle) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var _ Oracle = (*ScriptedOracle)(nil)
