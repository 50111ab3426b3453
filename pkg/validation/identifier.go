// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for plan-declared identifiers and
// oracle-produced file paths. The oracle is untrusted: every path it emits
// is validated here before it can touch the artifact tree, preventing
// path traversal and absolute-path escapes.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// identifierPattern matches valid unit and group identifiers.
// Allows: lowercase letters, digits, dots, hyphens, underscores.
// Must start with a letter or digit. Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// varNamePattern matches valid substitution variable names.
var varNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

// ValidateIdentifier validates a unit or group identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Lowercase letters a-z, digits 0-9
//   - Dots (.), hyphens (-), underscores (_) after the first character
//
// Identifiers participate in deterministic tie-break ordering, so the
// restricted alphabet also guarantees stable byte-wise comparison.
//
// Returns an error if the identifier is invalid.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q (must be 1-64 lowercase alphanumeric chars, dots, hyphens, or underscores)", id)
	}
	return nil
}

// ValidateVarName validates a substitution variable name.
func ValidateVarName(name string) error {
	if name == "" {
		return fmt.Errorf("variable name cannot be empty")
	}
	if !varNamePattern.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	return nil
}

// ValidateRelPath validates an oracle-produced or contract-declared file
// path for use inside the artifact tree.
//
// The path must be relative, slash-separated, non-empty, and must not
// escape the tree via ".." segments. Backslashes are rejected outright
// rather than normalized; the pipeline's path language is forward-slash
// only.
//
// Example:
//
//	if err := validation.ValidateRelPath(artifact.Path); err != nil {
//	    return fmt.Errorf("rejecting artifact: %w", err)
//	}
func ValidateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path %q contains backslashes", p)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q is absolute", p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path %q escapes the artifact tree", p)
	}
	if cleaned == "." {
		return fmt.Errorf("path %q resolves to the tree root", p)
	}
	return nil
}

// SanitizeRelPath normalizes and validates a relative path.
// Returns the cleaned path if valid, or an error if invalid.
func SanitizeRelPath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if err := ValidateRelPath(trimmed); err != nil {
		return "", err
	}
	return path.Clean(trimmed), nil
}
