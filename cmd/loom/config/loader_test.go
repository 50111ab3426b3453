// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".loom", "loom.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "config file should be created on first run")

	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, "pom.xml", cfg.Pipeline.RootFileName)
	assert.Equal(t, 3, cfg.Pipeline.MaxRepairIterations)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFrom_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	content := `
oracle:
  model: local-coder
  base_url: http://localhost:11434/v1
pipeline:
  toolchain: gradle
  build_command: ["./gradlew", "build"]
vars:
  base: com/acme
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "local-coder", cfg.Oracle.Model)
	assert.Equal(t, "gradle", cfg.Pipeline.Toolchain)
	assert.Equal(t, []string{"./gradlew", "build"}, cfg.Pipeline.BuildCommand)
	assert.Equal(t, "com/acme", cfg.Vars["base"])
	assert.Equal(t, 30, cfg.Oracle.RequestsPerMinute, "unset fields keep defaults")
}

func TestLoadFrom_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oracle: [not a map"), 0640))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}
