// Package config provides the configuration types shared by the CLI and
// the application layer, decoupled from how they are loaded.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/peak/pkg/adapter"
	"github.com/leapstack-labs/peak/pkg/core"
)

// EngineConfig holds query engine configuration.
type EngineConfig struct {
	Type string `koanf:"type" yaml:"type"` // duckdb

	// Path is the engine database file; empty runs in memory.
	Path string `koanf:"path" yaml:"path,omitempty"`

	// Params holds adapter-specific configuration (e.g. DuckDB extensions
	// and settings).
	Params map[string]any `koanf:"params" yaml:"params,omitempty"`
}

// Validate checks if the engine configuration is valid.
// It uses the adapter registry to determine which engine types are available.
func (e *EngineConfig) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("engine type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(e.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      e.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the engine configuration for adapter.Open.
func (e *EngineConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:   strings.ToLower(e.Type),
		Path:   e.Path,
		Params: e.Params,
	}
}
