package config

import (
	"os"
	"path/filepath"
)

// Default configuration values.
const (
	DefaultBatchSize      = 100
	DefaultQueryLimit     = 1000
	DefaultVisibleColumns = 10
	DefaultCacheSize      = 16
	DefaultTableName      = "data"
	DefaultExportPath     = "output.parquet"
	DefaultSQL            = "SELECT * FROM data LIMIT 100"
	DefaultEngine         = "duckdb"
	DefaultLogLevel       = "info"
	DefaultOutput         = "auto"

	// AppDir is the directory under the user config dir holding peak.yaml
	// and the history database.
	AppDir = "peak"
)

// DefaultHistoryPath returns the history database location, or "" when
// the home directory cannot be determined.
func DefaultHistoryPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "history.db")
}

// ConfigDir returns $HOME/.config/peak, or "" when the home directory
// cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", AppDir)
}

// ApplyEngineDefaults fills unset engine fields.
func ApplyEngineDefaults(e *EngineConfig) {
	if e == nil {
		return
	}
	if e.Type == "" {
		e.Type = DefaultEngine
	}
}
