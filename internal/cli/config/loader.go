package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/leapstack-labs/peak/internal/config"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// envPrefix is the prefix of environment variables read into the config.
const envPrefix = "PEAK_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps flag names onto config keys. Flags not listed here are
// command options, not configuration.
var flagKeys = map[string]string{
	"batch-size":      "batch_size",
	"limit":           "query_limit",
	"visible-columns": "visible_columns",
	"cache-size":      "cache_size",
	"export-path":     "export_path",
	"history":         "history_path",
	"log-file":        "log_file",
	"log-level":       "log_level",
	"verbose":         "verbose",
	"output":          "output",
	"engine-path":     "engine.path",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > ./peak.yaml > ./peak.yml > $HOME/.config/peak/peak.yaml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{ConfigFileName, ConfigFileNameAlt}
	if dir := sharedcfg.ConfigDir(); dir != "" {
		candidates = append(candidates,
			filepath.Join(dir, ConfigFileName),
			filepath.Join(dir, ConfigFileNameAlt))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"batch_size":      DefaultBatchSize,
		"query_limit":     DefaultQueryLimit,
		"visible_columns": DefaultVisibleColumns,
		"cache_size":      DefaultCacheSize,
		"table_name":      DefaultTableName,
		"export_path":     DefaultExportPath,
		"default_sql":     DefaultSQL,
		"history_path":    sharedcfg.DefaultHistoryPath(),
		"log_file":        "",
		"log_level":       DefaultLogLevel,
		"verbose":         false,
		"output":          DefaultOutput,
		"engine.type":     sharedcfg.DefaultEngine,
		"engine.path":     "",
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (PEAK_ prefix)
	// Transform: PEAK_BATCH_SIZE -> batch_size, PEAK_ENGINE__PATH -> engine.path
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Engine == nil {
		cfg.Engine = &EngineConfig{}
	}
	sharedcfg.ApplyEngineDefaults(cfg.Engine)

	cfg.Engine.Path = expandEnvVars(cfg.Engine.Path)
	cfg.HistoryPath = expandEnvVars(cfg.HistoryPath)
	cfg.LogFile = expandEnvVars(cfg.LogFile)
	cfg.ExportPath = expandEnvVars(cfg.ExportPath)

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
