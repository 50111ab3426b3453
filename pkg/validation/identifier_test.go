// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import "testing"

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "unit-a", false},
		{"dotted", "p1.g2.model", false},
		{"digits", "07-core", false},
		{"empty", "", true},
		{"uppercase", "UnitA", true},
		{"leading dash", "-unit", true},
		{"spaces", "unit a", true},
		{"too long", "a123456789012345678901234567890123456789012345678901234567890123456789", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRelPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"plain", "src/service/widget.go", false},
		{"root file", "go.mod", false},
		{"redundant segments", "src/./service/widget.go", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../outside.go", true},
		{"hidden traversal", "src/../../outside.go", true},
		{"backslash", `src\widget.go`, true},
		{"dot only", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRelPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeRelPath(t *testing.T) {
	got, err := SanitizeRelPath(" src/./pkg/a.go ")
	if err != nil {
		t.Fatalf("SanitizeRelPath() error = %v", err)
	}
	if got != "src/pkg/a.go" {
		t.Errorf("SanitizeRelPath() = %q, want %q", got, "src/pkg/a.go")
	}

	if _, err := SanitizeRelPath("../escape"); err == nil {
		t.Error("SanitizeRelPath should reject traversal")
	}
}
