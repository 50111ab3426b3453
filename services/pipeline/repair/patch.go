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
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// LooksLikeUnifiedDiff reports whether text is plausibly a unified diff.
// Corrections come back either as a whole-file JSON document or as a
// diff; this probe routes between the two without a speculative parse.
func LooksLikeUnifiedDiff(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.Contains(trimmed, "\n@@ ") &&
		strings.Contains(trimmed, "--- ") &&
		strings.Contains(trimmed, "+++ ")
}

// ApplyUnifiedDiff applies a multi-file unified diff under root.
//
// Description:
//
//	Parses the diff, resolves each file's target path (git-style a/ b/
//	prefixes stripped), applies hunks against the current content, and
//	writes the normalized result. A diff against /dev/null or a missing
//	file creates the file.
//
// Inputs:
//
//	root - Directory all paths resolve under.
//	patch - Unified diff text.
//
// Outputs:
//
//	[]string - Relative paths of the files written, in diff order.
//	error - ErrNotUnifiedDiff wrapped when the text does not parse.
func ApplyUnifiedDiff(root, patch string) ([]string, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotUnifiedDiff, err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("%w: no file sections", ErrNotUnifiedDiff)
	}

	var written []string
	for _, fd := range fileDiffs {
		relPath := diffTargetPath(fd)
		if relPath == "" {
			// Pure deletion. The repair loop never deletes files; a
			// correction that wants a file gone empties it instead.
			continue
		}

		fullPath := filepath.Join(root, relPath)
		original, readErr := os.ReadFile(fullPath)
		if readErr != nil && !os.IsNotExist(readErr) {
			return written, fmt.Errorf("reading %s: %w", relPath, readErr)
		}

		updated := applyFileDiff(string(original), fd)
		if err := writeNormalized(root, relPath, updated); err != nil {
			return written, err
		}
		written = append(written, relPath)
	}
	return written, nil
}

// diffTargetPath resolves a FileDiff's destination path, or "" for a
// deletion.
func diffTargetPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "/dev/null" {
		return ""
	}
	name = strings.TrimPrefix(name, "b/")
	return strings.TrimPrefix(name, "./")
}

// applyFileDiff applies one file's hunks to its original content.
func applyFileDiff(original string, fd *diff.FileDiff) string {
	if fd.OrigName == "/dev/null" || original == "" {
		// New file: the content is the added lines.
		var lines []string
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") {
					lines = append(lines, strings.TrimPrefix(line, "+"))
				}
			}
		}
		return strings.Join(lines, "\n")
	}

	origLines := strings.Split(original, "\n")
	newLines := make([]string, 0, len(origLines))

	origIdx := 0
	for _, hunk := range fd.Hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		for origIdx < hunkStart && origIdx < len(origLines) {
			newLines = append(newLines, origLines[origIdx])
			origIdx++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				newLines = append(newLines, strings.TrimPrefix(line, "+"))
			case strings.HasPrefix(line, "-"):
				origIdx++
			case strings.HasPrefix(line, " "), line == "":
				if origIdx < len(origLines) {
					newLines = append(newLines, origLines[origIdx])
					origIdx++
				}
			}
		}
	}

	for origIdx < len(origLines) {
		newLines = append(newLines, origLines[origIdx])
		origIdx++
	}
	return strings.Join(newLines, "\n")
}

// NormalizeContent strips trailing whitespace from every line and
// enforces exactly one trailing newline.
func NormalizeContent(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n") + "\n"
}

// writeNormalized writes normalized content at root/relPath, creating
// parent directories as needed.
func writeNormalized(root, relPath, content string) error {
	fullPath := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(NormalizeContent(content)), 0640); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	return nil
}
