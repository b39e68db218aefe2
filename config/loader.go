// Package config provides configuration types and utilities for the pipeline service.
// This file contains the YAML loading pipeline: read, expand env vars, decode,
// apply defaults, validate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadConfig loads and prepares a Config from a YAML file
func loadConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	return loadConfigFromBytes(data, config)
}

// loadConfigFromString loads and prepares a Config from YAML content
func loadConfigFromString(yamlContent string, config *Config) error {
	return loadConfigFromBytes([]byte(yamlContent), config)
}

// loadConfigFromBytes decodes YAML with environment variable expansion
// applied to every string value before the typed decode.
func loadConfigFromBytes(data []byte, config *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	expanded := expandTree(raw)

	// Round-trip through YAML to reuse the typed unmarshalers (Duration etc.)
	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return fmt.Errorf("failed to normalize config: %w", err)
	}

	if err := yaml.Unmarshal(normalized, config); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}
