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
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// BuildRunner runs the target project's build/verify command once.
//
// Implementations must capture combined stdout/stderr; the repair loop
// parses diagnostics out of that stream and archives it per iteration.
type BuildRunner interface {
	// Run executes the build command.
	//
	// Outputs:
	//   bool - True when the build verified successfully.
	//   []byte - The captured combined output.
	//   error - Non-nil only when the command could not run at all; an
	//     ordinary build failure is (false, log, nil).
	Run(ctx context.Context) (bool, []byte, error)
}

// ExecRunner invokes a build command via os/exec.
type ExecRunner struct {
	// Command is the build invocation, argv style.
	Command []string

	// Dir is the working directory for the invocation.
	Dir string

	// SuccessMarker, when non-empty, decides success by its presence in
	// the output instead of the exit status. Some toolchains print a
	// definitive marker (Maven's "BUILD SUCCESS") that is more reliable
	// than exit codes under wrapper scripts.
	SuccessMarker string
}

// NewExecRunner creates an ExecRunner.
//
// Outputs:
//
//	*ExecRunner - The configured runner.
//	error - ErrNoBuildCommand when command is empty.
func NewExecRunner(command []string, dir, successMarker string) (*ExecRunner, error) {
	if len(command) == 0 {
		return nil, ErrNoBuildCommand
	}
	return &ExecRunner{Command: command, Dir: dir, SuccessMarker: successMarker}, nil
}

// Run implements the BuildRunner interface.
func (r *ExecRunner) Run(ctx context.Context) (bool, []byte, error) {
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = r.Dir

	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// The command never ran (binary missing, context cancelled).
		return false, output, err
	}

	passed := err == nil
	if r.SuccessMarker != "" {
		passed = strings.Contains(string(output), r.SuccessMarker)
	}

	slog.Debug("Build command finished",
		"command", strings.Join(r.Command, " "),
		"passed", passed,
		"output_bytes", len(output),
	)
	return passed, output, nil
}

var _ BuildRunner = (*ExecRunner)(nil)
