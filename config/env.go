// Package config provides configuration types and utilities for the pipeline service.
// This file expands ${VAR} and ${VAR:-default} references in configuration values.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

// envRef matches ${VAR} and ${VAR:-default} references
var envRef = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(?::-([^}]*))?\}`)

// expandTree walks decoded YAML and expands env references in every string
// value. A value that a reference turned into a plain bool or number is
// re-typed, so `port: ${PORT:-8080}` still decodes as an int downstream.
func expandTree(node interface{}) interface{} {
	switch v := node.(type) {
	case string:
		expanded := envRef.ReplaceAllStringFunc(v, resolveRef)
		if expanded == v {
			return v
		}
		return retypeScalar(expanded)

	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			out[key] = expandTree(child)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = expandTree(child)
		}
		return out

	default:
		return node
	}
}

// resolveRef resolves one ${...} reference: a non-empty environment value
// wins, the inline default covers an unset or empty variable, and a plain
// ${VAR} with no value resolves to the empty string.
func resolveRef(ref string) string {
	groups := envRef.FindStringSubmatch(ref)
	if val := os.Getenv(groups[1]); val != "" {
		return val
	}
	return groups[2]
}

func retypeScalar(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// LoadEnvFiles loads .env.local and .env into the process environment before
// the configuration is read. Variables already set in the environment win,
// .env.local wins over .env, and missing files are skipped.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}
