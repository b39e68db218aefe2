// Package config provides configuration types and utilities for the pipeline service.
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config represents the complete configuration.
// A single YAML file is the entry point for everything the service needs:
// collaborator endpoints, pipeline policies, notifiers, storage and server.
type Config struct {
	// Version and metadata
	Version     string            `yaml:"version,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	// Global settings
	Global GlobalSettings `yaml:"global,omitempty"`

	// Trigger API server
	Server ServerConfig `yaml:"server,omitempty"`

	// Run archive storage
	Storage StorageConfig `yaml:"storage,omitempty"`

	// Collaborator endpoints, keyed by collaborator name
	Collaborators map[string]CollaboratorConfig `yaml:"collaborators,omitempty"`

	// Per-pipeline execution policies, keyed by pipeline name
	Pipelines map[string]PipelineConfig `yaml:"pipelines,omitempty"`

	// Notification channels, keyed by notifier name
	Notifiers map[string]NotifierConfig `yaml:"notifiers,omitempty"`
}

// sections lists the singleton configuration nodes in cascade order.
// The keyed maps (collaborators, pipelines, notifiers) are walked
// separately so errors can name the offending entry.
func (c *Config) sections() []struct {
	name string
	node Section
} {
	return []struct {
		name string
		node Section
	}{
		{"global", &c.Global},
		{"server", &c.Server},
		{"storage", &c.Storage},
	}
}

// Validate implements Section.Validate for Config
func (c *Config) Validate() error {
	for _, s := range c.sections() {
		if err := s.node.Validate(); err != nil {
			return fmt.Errorf("%s config validation failed: %w", s.name, err)
		}
	}

	for name, collaborator := range c.Collaborators {
		if err := collaborator.Validate(); err != nil {
			return fmt.Errorf("collaborator '%s' validation failed: %w", name, err)
		}
	}

	for name, pipeline := range c.Pipelines {
		if err := pipeline.Validate(); err != nil {
			return fmt.Errorf("pipeline '%s' validation failed: %w", name, err)
		}
	}

	for name, notifier := range c.Notifiers {
		if err := notifier.Validate(); err != nil {
			return fmt.Errorf("notifier '%s' validation failed: %w", name, err)
		}
	}

	// A pipeline may only reference a configured notifier
	for name, pipeline := range c.Pipelines {
		if pipeline.Notifier == "" {
			continue
		}
		if _, exists := c.Notifiers[pipeline.Notifier]; !exists {
			return fmt.Errorf("pipeline '%s' references unknown notifier '%s'", name, pipeline.Notifier)
		}
	}

	return nil
}

// SetDefaults implements Section.SetDefaults for Config
func (c *Config) SetDefaults() {
	for _, s := range c.sections() {
		s.node.SetDefaults()
	}

	if c.Collaborators == nil {
		c.Collaborators = make(map[string]CollaboratorConfig)
	}
	if c.Pipelines == nil {
		c.Pipelines = make(map[string]PipelineConfig)
	}
	if c.Notifiers == nil {
		c.Notifiers = make(map[string]NotifierConfig)
	}

	for name := range c.Collaborators {
		collaborator := c.Collaborators[name]
		collaborator.SetDefaults()
		c.Collaborators[name] = collaborator
	}

	for name := range c.Pipelines {
		pipeline := c.Pipelines[name]
		pipeline.SetDefaults()
		c.Pipelines[name] = pipeline
	}

	for name := range c.Notifiers {
		notifier := c.Notifiers[name]
		notifier.SetDefaults()
		c.Notifiers[name] = notifier
	}
}

// ============================================================================
// GLOBAL SETTINGS
// ============================================================================

// GlobalSettings contains global configuration settings
type GlobalSettings struct {
	// Environment name, stamped on notifications ("dev", "stg", "prod")
	Environment string `yaml:"environment,omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// Validate implements Section.Validate for GlobalSettings
func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for GlobalSettings
func (c *GlobalSettings) SetDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	c.Logging.SetDefaults()
}

// ============================================================================
// LOGGING CONFIGURATION
// ============================================================================

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format,omitempty"` // "text", "json"
}

// Validate validates the logging configuration
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	return nil
}

// SetDefaults sets default values for logging configuration
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// LoadConfig loads the complete configuration from a YAML file
// This is the main entry point for configuration loading
func LoadConfig(filePath string) (*Config, error) {
	var config Config
	if err := loadConfig(filePath, &config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &config, nil
}

// LoadConfigFromString loads configuration from a YAML string
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var config Config
	if err := loadConfigFromString(yamlContent, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from string: %w", err)
	}
	return &config, nil
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// GetCollaborator returns a collaborator configuration by name
func (c *Config) GetCollaborator(name string) (*CollaboratorConfig, bool) {
	collaborator, exists := c.Collaborators[name]
	return &collaborator, exists
}

// GetPipeline returns a pipeline configuration by name
func (c *Config) GetPipeline(name string) (*PipelineConfig, bool) {
	pipeline, exists := c.Pipelines[name]
	return &pipeline, exists
}

// GetNotifier returns a notifier configuration by name
func (c *Config) GetNotifier(name string) (*NotifierConfig, bool) {
	notifier, exists := c.Notifiers[name]
	return &notifier, exists
}

// ListCollaborators returns a list of all collaborator names
func (c *Config) ListCollaborators() []string {
	collaborators := make([]string, 0, len(c.Collaborators))
	for name := range c.Collaborators {
		collaborators = append(collaborators, name)
	}
	return collaborators
}

// ListPipelines returns a list of all pipeline names
func (c *Config) ListPipelines() []string {
	pipelines := make([]string, 0, len(c.Pipelines))
	for name := range c.Pipelines {
		pipelines = append(pipelines, name)
	}
	return pipelines
}
