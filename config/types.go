// Package config provides configuration types and utilities for the pipeline service.
// This file contains all configuration types in a unified structure.
package config

import (
	"fmt"
	"time"
)

// ============================================================================
// DURATION
// ============================================================================

// Duration is a time.Duration that supports YAML parsing.
//
// Supports formats like: "1s", "5m", "2h", "100ms", "1h30m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as integer (nanoseconds)
		var ns int64
		if err := unmarshal(&ns); err != nil {
			return fmt.Errorf("duration must be a string (e.g., '1s') or integer (nanoseconds)")
		}
		*d = Duration(ns)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the string representation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ============================================================================
// COLLABORATOR CONFIGURATION
// ============================================================================

// CollaboratorConfig describes one external collaborator endpoint.
// Collaborators are black boxes; only the request/response contract matters.
type CollaboratorConfig struct {
	Type    string     `yaml:"type"`              // "http", "mock"
	URL     string     `yaml:"url,omitempty"`     // Invocation endpoint (http)
	Timeout Duration   `yaml:"timeout,omitempty"` // Per-call timeout
	Auth    AuthConfig `yaml:"auth,omitempty"`    // Optional authentication
}

// Validate implements Section.Validate for CollaboratorConfig
func (c *CollaboratorConfig) Validate() error {
	switch c.Type {
	case "http":
		if c.URL == "" {
			return fmt.Errorf("url is required for http collaborators")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown collaborator type: %s", c.Type)
	}
	return c.Auth.Validate()
}

// SetDefaults implements Section.SetDefaults for CollaboratorConfig
func (c *CollaboratorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "http"
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(60 * time.Second)
	}
}

// AuthConfig contains collaborator authentication configuration
type AuthConfig struct {
	Type         string `yaml:"type,omitempty"`           // "bearer", "apiKey"
	Token        string `yaml:"token,omitempty"`          // Bearer token
	APIKey       string `yaml:"api_key,omitempty"`        // API key
	APIKeyHeader string `yaml:"api_key_header,omitempty"` // Header name for API key
}

// Validate validates the authentication configuration
func (c *AuthConfig) Validate() error {
	switch c.Type {
	case "":
	case "bearer":
		if c.Token == "" {
			return fmt.Errorf("token is required for bearer auth")
		}
	case "apiKey":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for apiKey auth")
		}
	default:
		return fmt.Errorf("unknown auth type: %s", c.Type)
	}
	return nil
}

// ============================================================================
// PIPELINE CONFIGURATION
// ============================================================================

// PipelineConfig contains the execution policy for one pipeline.
// The step graph itself is defined in code; configuration only tunes
// timeouts, retries and failure notification.
type PipelineConfig struct {
	Enabled  *bool       `yaml:"enabled,omitempty"`  // Defaults to true
	Timeout  Duration    `yaml:"timeout,omitempty"`  // Overall run wall-clock budget
	Retry    RetryConfig `yaml:"retry,omitempty"`    // Default step retry policy
	Notifier string      `yaml:"notifier,omitempty"` // Failure notifier name (optional)
}

// Validate implements Section.Validate for PipelineConfig
func (c *PipelineConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return c.Retry.Validate()
}

// SetDefaults implements Section.SetDefaults for PipelineConfig
func (c *PipelineConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	c.Retry.SetDefaults()
}

// IsEnabled reports whether the pipeline is enabled.
func (c *PipelineConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RetryConfig describes the retry policy applied to each step.
// The default is a single attempt: failures surface immediately rather
// than being retried silently.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts,omitempty"`
	InitialBackoff Duration `yaml:"initial_backoff,omitempty"`
	Multiplier     float64  `yaml:"multiplier,omitempty"`
}

// Validate validates the retry configuration
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative")
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff cannot be negative")
	}
	if c.Multiplier < 0 {
		return fmt.Errorf("multiplier cannot be negative")
	}
	return nil
}

// SetDefaults sets default values for retry configuration
func (c *RetryConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = Duration(1 * time.Second)
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
}

// ============================================================================
// NOTIFIER CONFIGURATION
// ============================================================================

// NotifierConfig describes one notification channel
type NotifierConfig struct {
	Type    string   `yaml:"type"`              // "webhook", "log"
	URL     string   `yaml:"url,omitempty"`     // Webhook endpoint
	Timeout Duration `yaml:"timeout,omitempty"` // Delivery timeout
}

// Validate implements Section.Validate for NotifierConfig
func (c *NotifierConfig) Validate() error {
	switch c.Type {
	case "webhook":
		if c.URL == "" {
			return fmt.Errorf("url is required for webhook notifiers")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notifier type: %s", c.Type)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for NotifierConfig
func (c *NotifierConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "log"
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(10 * time.Second)
	}
}

// ============================================================================
// STORAGE CONFIGURATION
// ============================================================================

// StorageConfig describes the run archive backend
type StorageConfig struct {
	Backend string `yaml:"backend,omitempty"` // "inmemory", "sqlite", "postgres", "mysql"
	DSN     string `yaml:"dsn,omitempty"`     // Path or DSN for SQL backends
}

// Validate implements Section.Validate for StorageConfig
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case "", "inmemory":
	case "sqlite", "postgres", "mysql":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for %s storage", c.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Backend)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for StorageConfig
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "inmemory"
	}
}

// ============================================================================
// SERVER CONFIGURATION
// ============================================================================

// ServerConfig contains configuration for the trigger API server
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// MaxConcurrentRuns bounds in-flight pipeline runs; triggers beyond the
	// bound are rejected until a run finishes (0 = unbounded)
	MaxConcurrentRuns int `yaml:"max_concurrent_runs,omitempty"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConcurrentRuns < 0 {
		return fmt.Errorf("max_concurrent_runs cannot be negative")
	}
	return nil
}

// SetDefaults sets default values for server configuration
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}
