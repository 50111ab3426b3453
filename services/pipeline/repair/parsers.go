// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// =============================================================================
// BUILD LOG PARSERS
// =============================================================================

// BuildError is one structured diagnostic extracted from a build log.
type BuildError struct {
	// File is the referenced source path as printed by the toolchain,
	// normalized to forward slashes without a leading "./".
	File string `json:"file"`

	// Line is the 1-based line number, 0 when the toolchain omits it.
	Line int `json:"line"`

	// Column is the 1-based column number, 0 when omitted.
	Column int `json:"column"`

	// Message is the diagnostic text.
	Message string `json:"message"`
}

// ErrorParser extracts structured errors from raw build output.
//
// Inputs:
//
//	output - Raw stdout/stderr from the build command
//
// Outputs:
//
//	[]BuildError - Extracted diagnostics in log order, deduplicated
type ErrorParser func(output []byte) []BuildError

// parserRegistry maps toolchain names to their log parsers.
// Protected by parserMu for concurrent access.
var (
	parserRegistry = map[string]ErrorParser{
		"go":      parseGoBuildOutput,
		"maven":   parseMavenOutput,
		"gradle":  parseJavacOutput,
		"javac":   parseJavacOutput,
		"generic": parseGenericOutput,
	}
	parserMu sync.RWMutex
)

// GetErrorParser returns the parser for a toolchain, falling back to the
// generic gcc-style parser for unknown names.
//
// Thread Safety: Safe for concurrent use.
func GetErrorParser(toolchain string) ErrorParser {
	parserMu.RLock()
	defer parserMu.RUnlock()
	if p, ok := parserRegistry[toolchain]; ok {
		return p
	}
	return parserRegistry["generic"]
}

// RegisterErrorParser registers a custom parser for a toolchain.
//
// Thread Safety: Safe for concurrent use.
func RegisterErrorParser(toolchain string, parser ErrorParser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserRegistry[toolchain] = parser
}

// ReferencedFiles returns the distinct files an error set references, in
// first-seen order.
func ReferencedFiles(errs []BuildError) []string {
	seen := make(map[string]bool, len(errs))
	files := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.File == "" || seen[e.File] {
			continue
		}
		seen[e.File] = true
		files = append(files, e.File)
	}
	return files
}

// dedupe removes repeated diagnostics while preserving log order.
func dedupe(errs []BuildError) []BuildError {
	seen := make(map[string]bool, len(errs))
	out := make([]BuildError, 0, len(errs))
	for _, e := range errs {
		key := fmt.Sprintf("%s:%d:%d:%s", e.File, e.Line, e.Column, e.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// normalizeFile strips a leading "./" and converts backslashes.
func normalizeFile(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.TrimPrefix(path, "./")
}

// =============================================================================
// GO BUILD OUTPUT PARSER
// =============================================================================

// Go compiler diagnostic patterns.
var (
	goErrorPattern     = regexp.MustCompile(`^(\S+\.go):(\d+):(\d+): (.+)$`)
	goErrorNoColumn    = regexp.MustCompile(`^(\S+\.go):(\d+): (.+)$`)
	goVetFailurePrefix = "# "
)

// parseGoBuildOutput parses `go build` / `go vet` diagnostics.
//
// Description:
//
//	Recognizes "file.go:line:col: message" and the column-less variant.
//	Package header lines ("# pkg/path") carry no position and are skipped.
func parseGoBuildOutput(output []byte) []BuildError {
	var errs []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, goVetFailurePrefix) {
			continue
		}
		if m := goErrorPattern.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{
				File:    normalizeFile(m[1]),
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: m[4],
			})
			continue
		}
		if m := goErrorNoColumn.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{
				File:    normalizeFile(m[1]),
				Line:    atoi(m[2]),
				Message: m[3],
			})
		}
	}
	return dedupe(errs)
}

// =============================================================================
// MAVEN OUTPUT PARSER
// =============================================================================

// Maven compiler-plugin diagnostic pattern:
// [ERROR] /abs/path/Widget.java:[14,8] cannot find symbol
var mavenErrorPattern = regexp.MustCompile(`^\[ERROR\]\s+(\S+?\.java):\[(\d+),(\d+)\]\s+(.+)$`)

// parseMavenOutput parses `mvn compile` diagnostics.
func parseMavenOutput(output []byte) []BuildError {
	var errs []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if m := mavenErrorPattern.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{
				File:    normalizeFile(m[1]),
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: m[4],
			})
		}
	}
	return dedupe(errs)
}

// =============================================================================
// JAVAC / GRADLE OUTPUT PARSER
// =============================================================================

// Plain javac diagnostic pattern, which Gradle passes through:
// src/main/java/Widget.java:14: error: cannot find symbol
var javacErrorPattern = regexp.MustCompile(`^(\S+?\.java):(\d+):\s+(?:error|warning):\s+(.+)$`)

// parseJavacOutput parses javac-style diagnostics.
func parseJavacOutput(output []byte) []BuildError {
	var errs []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if m := javacErrorPattern.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{
				File:    normalizeFile(m[1]),
				Line:    atoi(m[2]),
				Message: m[3],
			})
		}
	}
	return dedupe(errs)
}

// =============================================================================
// GENERIC OUTPUT PARSER
// =============================================================================

// Generic gcc-style diagnostic pattern: file:line[:col]: message
var genericErrorPattern = regexp.MustCompile(`^([^\s:][^:]*\.\w+):(\d+)(?::(\d+))?:\s*(.+)$`)

// parseGenericOutput parses gcc-style "file:line:col: message" lines.
func parseGenericOutput(output []byte) []BuildError {
	var errs []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if m := genericErrorPattern.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{
				File:    normalizeFile(m[1]),
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: m[4],
			})
		}
	}
	return dedupe(errs)
}

// atoi parses a digits-only capture group; the regexes guarantee the
// input is either empty or numeric.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
