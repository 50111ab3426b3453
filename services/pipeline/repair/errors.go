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

import "errors"

// Sentinel errors for the repair package.
var (
	// ErrNoBuildCommand is returned when a session is created without a
	// build command.
	ErrNoBuildCommand = errors.New("repair session requires a build command")

	// ErrSessionTerminal is returned when Run is called on a session that
	// already reached Passed or Exhausted.
	ErrSessionTerminal = errors.New("repair session already terminal")

	// ErrNotUnifiedDiff is returned when diff application is attempted on
	// text that is not a unified diff.
	ErrNotUnifiedDiff = errors.New("correction is not a unified diff")
)
