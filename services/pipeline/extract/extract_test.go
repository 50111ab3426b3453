// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"errors"
	"testing"
)

const plainDoc = `{"files": [{"path": "src/A.java", "content": "class A {}"}]}`

func TestParse_Raw(t *testing.T) {
	result, err := Parse(plainDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Strategy != StrategyRaw {
		t.Errorf("Strategy = %v, want raw", result.Strategy)
	}
	if len(result.Doc.Files) != 1 || result.Doc.Files[0].Path != "src/A.java" {
		t.Errorf("Doc = %+v, want one entry for src/A.java", result.Doc)
	}
}

func TestParse_Fenced(t *testing.T) {
	fenced := "```json\n" + plainDoc + "\n```"

	result, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Strategy != StrategyFenceStripped {
		t.Errorf("Strategy = %v, want fence-stripped", result.Strategy)
	}
	if result.Doc.Files[0].Content != "class A {}" {
		t.Errorf("Content = %q", result.Doc.Files[0].Content)
	}
}

func TestParse_WrappedInProse(t *testing.T) {
	wrapped := "Sure! Here is the corrected output you asked for:\n\n" +
		plainDoc +
		"\n\nLet me know if anything else is needed."

	result, err := Parse(wrapped)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Strategy != StrategyBraceSpan {
		t.Errorf("Strategy = %v, want brace-span", result.Strategy)
	}
	if len(result.Doc.Files) != 1 {
		t.Errorf("Files = %d, want 1", len(result.Doc.Files))
	}
}

func TestParse_BracesInsideContent(t *testing.T) {
	doc := `noise {"files": [{"path": "src/B.java", "content": "class B { int x() { return 1; } }"}]} noise`

	result, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Doc.Files[0].Content != "class B { int x() { return 1; } }" {
		t.Errorf("Content = %q", result.Doc.Files[0].Content)
	}
}

func TestParse_EscapedQuotesInsideContent(t *testing.T) {
	doc := `prefix {"files": [{"path": "a.txt", "content": "say \"hi\" {ok}"}]} suffix`

	result, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Doc.Files[0].Content != `say "hi" {ok}` {
		t.Errorf("Content = %q", result.Doc.Files[0].Content)
	}
}

func TestParse_StrategyOrder(t *testing.T) {
	// A raw-parseable document must be attributed to the raw strategy
	// even though later strategies would also succeed.
	result, err := Parse(plainDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Strategy != StrategyRaw {
		t.Errorf("Strategy = %v, want raw (first success wins)", result.Strategy)
	}
}

func TestParse_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose only", "I could not produce the files you asked for."},
		{"empty", ""},
		{"wrong key", `{"artifacts": []}`},
		{"empty object", `{}`},
		{"unterminated", `{"files": [{"path": "a",`},
		{"fenced prose", "```\nnot json\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if !errors.Is(err, ErrUnparseable) {
				t.Errorf("Parse(%q) error = %v, want ErrUnparseable", tt.text, err)
			}
		})
	}
}

func TestParse_EmptyFilesListIsValid(t *testing.T) {
	// An explicit empty list is a parsed "no changes" statement, which is
	// different from an unparseable response.
	result, err := Parse(`{"files": []}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Doc.Files) != 0 {
		t.Errorf("Files = %v, want empty", result.Doc.Files)
	}
}
