package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.QueryLimit < 0 {
		return fmt.Errorf("query_limit must not be negative, got %d (use 0 to disable)", c.QueryLimit)
	}
	if c.VisibleColumns <= 0 {
		return fmt.Errorf("visible_columns must be positive, got %d", c.VisibleColumns)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if !isIdentifier(c.TableName) {
		return fmt.Errorf("table_name %q is not a valid identifier", c.TableName)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Engine == nil {
		return fmt.Errorf("engine configuration is required")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	return nil
}

// ParseLevel maps a log level name onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", s)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
