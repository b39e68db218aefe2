// Package config provides configuration types and utilities for the pipeline service.
// This file defines the contract shared by every configuration node.
package config

// Section is implemented by every configuration node. Config walks its
// sections top-down, defaults before validation, so a node never has to
// validate fields that are still unset.
type Section interface {
	// SetDefaults fills unset fields with their default values
	SetDefaults()

	// Validate checks the node after defaults have been applied
	Validate() error
}
