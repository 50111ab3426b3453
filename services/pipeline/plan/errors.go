// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import "errors"

// Sentinel errors for the plan package. Load failures are the one class
// of error that aborts a whole run.
var (
	// ErrEmptyPlan is returned when the document contains no phases.
	ErrEmptyPlan = errors.New("execution plan contains no phases")

	// ErrDuplicateUnit is returned when two units share an ID.
	ErrDuplicateUnit = errors.New("duplicate unit identifier")

	// ErrDuplicateGroup is returned when two groups share an ID.
	ErrDuplicateGroup = errors.New("duplicate group identifier")

	// ErrPhaseOrder is returned when phase numbers are not strictly ascending.
	ErrPhaseOrder = errors.New("phase numbers must be strictly ascending")

	// ErrUnresolvedVariable is returned when a contract template references
	// a variable with no binding.
	ErrUnresolvedVariable = errors.New("unresolved template variable")
)
