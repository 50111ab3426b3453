// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract recovers structured file documents from oracle output.
//
// Oracle responses are supposed to be a single JSON document but often
// arrive wrapped in prose or code fences. Extraction runs an ordered
// list of pure parse attempts, stopping at the first success:
//
//  1. Parse the raw text as-is.
//  2. Strip a leading/trailing fenced-code delimiter and parse.
//  3. Locate the largest balanced brace span containing the expected
//     top-level key and parse that span.
//
// If every strategy fails, callers receive ErrUnparseable — never a
// best-effort guess. Callers must not treat an unparseable response as
// "no changes".
//
// All functions are pure; there is no I/O here, which keeps the
// extraction testable in isolation from any live oracle.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable is returned when no strategy yields a valid document.
var ErrUnparseable = errors.New("oracle response is unparseable")

// topLevelKey is the JSON key every valid document must carry.
const topLevelKey = "files"

// FileEntry is one (path, content) pair in an oracle document.
type FileEntry struct {
	// Path is the artifact path relative to the artifact tree root.
	Path string `json:"path"`

	// Content is the full file content.
	Content string `json:"content"`
}

// Document is the structured form of an oracle response: the list of
// files to write, in response order.
type Document struct {
	Files []FileEntry `json:"files"`
}

// Strategy names the parse attempt that succeeded, for trace artifacts.
type Strategy string

const (
	// StrategyRaw parsed the response text as-is.
	StrategyRaw Strategy = "raw"

	// StrategyFenceStripped parsed after removing code-fence delimiters.
	StrategyFenceStripped Strategy = "fence-stripped"

	// StrategyBraceSpan parsed the largest balanced brace span.
	StrategyBraceSpan Strategy = "brace-span"
)

// Result is a successful extraction: the document plus which strategy
// recovered it.
type Result struct {
	Doc      *Document
	Strategy Strategy
}

// Parse extracts a Document from free-form oracle response text.
//
// Inputs:
//
//	text - The raw oracle response.
//
// Outputs:
//
//	*Result - The document and the strategy that recovered it.
//	error - ErrUnparseable (wrapped) if every strategy fails.
func Parse(text string) (*Result, error) {
	if doc, ok := tryParse(text); ok {
		return &Result{Doc: doc, Strategy: StrategyRaw}, nil
	}

	if stripped, ok := stripFences(text); ok {
		if doc, ok := tryParse(stripped); ok {
			return &Result{Doc: doc, Strategy: StrategyFenceStripped}, nil
		}
	}

	if span, ok := largestBraceSpan(text); ok {
		if doc, ok := tryParse(span); ok {
			return &Result{Doc: doc, Strategy: StrategyBraceSpan}, nil
		}
	}

	return nil, fmt.Errorf("%w: %d bytes, no strategy matched", ErrUnparseable, len(text))
}

// tryParse attempts a strict parse. The document must be a JSON object
// carrying the expected top-level key; "{}" is not a valid document, so
// an absent key can never be mistaken for "no changes".
func tryParse(text string) (*Document, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, false
	}
	if _, ok := probe[topLevelKey]; !ok {
		return nil, false
	}

	var doc Document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// stripFences removes one layer of Markdown code-fence delimiters.
// Returns false when the text is not fenced.
func stripFences(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}

	// Drop the opening fence line (may carry a language tag).
	newline := strings.IndexByte(trimmed, '\n')
	if newline < 0 {
		return "", false
	}
	body := trimmed[newline+1:]

	closing := strings.LastIndex(body, "```")
	if closing < 0 {
		return "", false
	}
	return body[:closing], true
}

// largestBraceSpan scans for the largest substring that opens with '{',
// returns to nesting depth zero, and contains the expected top-level
// key. String literals and escapes are honored so braces inside file
// content do not confuse the scan.
func largestBraceSpan(text string) (string, bool) {
	best := ""
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end, ok := matchBrace(text, start)
		if !ok {
			continue
		}
		span := text[start : end+1]
		if len(span) > len(best) && strings.Contains(span, `"`+topLevelKey+`"`) {
			best = span
		}
		// Skip past this balanced span; any larger span containing it
		// would have started earlier.
		start = end
	}
	return best, best != ""
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
