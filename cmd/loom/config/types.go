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

// LoomConfig is the user-facing configuration, persisted at
// ~/.loom/loom.yaml and created with defaults on first run.
type LoomConfig struct {
	// Oracle configures the generation backend.
	Oracle OracleConfig `yaml:"oracle"`

	// Pipeline configures run defaults; most are overridable by flags.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Vars are default variable bindings for contract templates, merged
	// with (and overridden by) --var flags.
	Vars map[string]string `yaml:"vars,omitempty"`
}

type OracleConfig struct {
	// Model is the model identifier, e.g. "gpt-4o-mini".
	Model string `yaml:"model"`

	// BaseURL points at any OpenAI-compatible endpoint; empty means the
	// hosted API.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyFile is a secrets-file fallback when OPENAI_API_KEY is unset.
	APIKeyFile string `yaml:"api_key_file,omitempty"`

	// RequestsPerMinute bounds the call rate. Zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type PipelineConfig struct {
	// OutputDir is where accepted artifacts are written.
	OutputDir string `yaml:"output_dir"`

	// TraceDir holds per-run audit artifacts.
	TraceDir string `yaml:"trace_dir"`

	// BuildCommand verifies the generated project; empty disables the
	// repair loop.
	BuildCommand []string `yaml:"build_command,omitempty"`

	// SuccessMarker optionally decides build success by output content,
	// e.g. Maven's "BUILD SUCCESS".
	SuccessMarker string `yaml:"success_marker,omitempty"`

	// Toolchain selects the build-log parser (go, maven, gradle, generic).
	Toolchain string `yaml:"toolchain"`

	// RootFileName is the project-root singleton file for scope
	// classification.
	RootFileName string `yaml:"root_file_name"`

	// MaxRepairIterations bounds each group's repair session.
	MaxRepairIterations int `yaml:"max_repair_iterations"`

	// StyleRulesFile points at a text file of style/consistency rules
	// passed to the oracle verbatim.
	StyleRulesFile string `yaml:"style_rules_file,omitempty"`
}

type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir, when set, adds a per-service log file alongside stderr.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches the stderr handler to JSON lines.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() LoomConfig {
	return LoomConfig{
		Oracle: OracleConfig{
			Model:             "gpt-4o-mini",
			RequestsPerMinute: 30,
		},
		Pipeline: PipelineConfig{
			OutputDir:           "generated",
			TraceDir:            "traces",
			Toolchain:           "maven",
			RootFileName:        "pom.xml",
			MaxRepairIterations: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
