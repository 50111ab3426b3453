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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is the singleton configuration, populated by Load.
	Global LoomConfig
	once   sync.Once
)

// Load populates Global from ~/.loom/loom.yaml, creating the file with
// defaults on first run. Safe to call more than once; only the first
// call does work.
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = defaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// LoadFrom reads a configuration file, creating it with defaults when it
// does not exist.
func LoadFrom(path string) (LoomConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return LoomConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return LoomConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return LoomConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	return cfg, nil
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".loom", "loom.yaml"), nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
