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
	"errors"
	"testing"
)

func TestScriptedOracle_ReplaysInOrder(t *testing.T) {
	s := NewScriptedOracle("first", "second")
	ctx := context.Background()

	got, err := s.Generate(ctx, Request{Kind: KindGeneration, GroupID: "g1"})
	if err != nil || got != "first" {
		t.Fatalf("Generate() = %q, %v, want first", got, err)
	}

	got, err = s.Generate(ctx, Request{Kind: KindCorrection, GroupID: "g1", Iteration: 1})
	if err != nil || got != "second" {
		t.Fatalf("Generate() = %q, %v, want second", got, err)
	}

	_, err = s.Generate(ctx, Request{})
	if !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("Generate() error = %v, want ErrScriptExhausted", err)
	}

	calls := s.Calls()
	if len(calls) != 3 {
		t.Fatalf("Calls() = %d, want 3 (exhausted call is still recorded)", len(calls))
	}
	if calls[1].Iteration != 1 || calls[1].Kind != KindCorrection {
		t.Errorf("call 1 = %+v, want correction iteration 1", calls[1])
	}
}

func TestScriptedOracle_ContextCancelled(t *testing.T) {
	s := NewScriptedOracle("unused")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestNewOpenAIOracle_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIOracle(OpenAIConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewOpenAIOracle() error = %v, want ErrNoAPIKey", err)
	}
}

func TestNewOpenAIOracle_KeyFromConfig(t *testing.T) {
	o, err := NewOpenAIOracle(OpenAIConfig{
		APIKey:            "test-key",
		Model:             "local-model",
		BaseURL:           "http://localhost:11434/v1",
		RequestsPerMinute: 30,
	})
	if err != nil {
		t.Fatalf("NewOpenAIOracle() error = %v", err)
	}
	if o.model != "local-model" {
		t.Errorf("model = %q, want local-model", o.model)
	}
	if o.limiter == nil {
		t.Error("limiter should be configured when RequestsPerMinute > 0")
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(Request{Kind: KindCorrection, RunID: "r1", GroupID: "g2", Iteration: 2})
	want := "correction group=g2 iter=2 run=r1"
	if got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
