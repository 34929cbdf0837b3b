// Package config provides configuration management for the peak CLI.
//
// The shared engine type (EngineConfig) is defined in internal/config and
// re-exported here via a type alias for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/peak/internal/config"
)

// EngineConfig is an alias for the shared engine configuration.
// This allows CLI code to use config.EngineConfig without importing
// internal/config.
type EngineConfig = sharedcfg.EngineConfig

// Config holds all CLI configuration options.
type Config struct {
	BatchSize      int    `koanf:"batch_size" yaml:"batch_size"`
	// QueryLimit 0 disables the default limit.
	QueryLimit     int    `koanf:"query_limit" yaml:"query_limit"`
	VisibleColumns int    `koanf:"visible_columns" yaml:"visible_columns"`
	CacheSize      int    `koanf:"cache_size" yaml:"cache_size"`
	TableName      string `koanf:"table_name" yaml:"table_name"`
	ExportPath     string `koanf:"export_path" yaml:"export_path"`
	DefaultSQL     string `koanf:"default_sql" yaml:"default_sql"`
	// HistoryPath "" disables history.
	HistoryPath    string `koanf:"history_path" yaml:"history_path"`
	LogFile        string `koanf:"log_file" yaml:"log_file"`
	LogLevel       string `koanf:"log_level" yaml:"log_level"`
	Verbose        bool   `koanf:"verbose" yaml:"verbose"`
	OutputFormat   string `koanf:"output" yaml:"output"`

	Engine *EngineConfig `koanf:"engine" yaml:"engine"`
}

// SessionLimit converts QueryLimit to the query session's convention,
// where a negative limit disables capping.
func (c *Config) SessionLimit() int {
	if c.QueryLimit == 0 {
		return -1
	}
	return c.QueryLimit
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultBatchSize      = sharedcfg.DefaultBatchSize
	DefaultQueryLimit     = sharedcfg.DefaultQueryLimit
	DefaultVisibleColumns = sharedcfg.DefaultVisibleColumns
	DefaultCacheSize      = sharedcfg.DefaultCacheSize
	DefaultTableName      = sharedcfg.DefaultTableName
	DefaultExportPath     = sharedcfg.DefaultExportPath
	DefaultSQL            = sharedcfg.DefaultSQL
	DefaultLogLevel       = sharedcfg.DefaultLogLevel
	DefaultOutput         = sharedcfg.DefaultOutput

	// ConfigFileName is the config file looked up in the working directory
	// and the user config directory.
	ConfigFileName    = "peak.yaml"
	ConfigFileNameAlt = "peak.yml"
)
