package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/peak/internal/cli/config"
	"github.com/leapstack-labs/peak/internal/cli/output"
	"github.com/leapstack-labs/peak/internal/codec"
	"github.com/leapstack-labs/peak/internal/history"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/pkg/adapter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	// DuckDB is the default query engine.
	_ "github.com/leapstack-labs/peak/pkg/adapters/duckdb"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		BatchSize:      config.DefaultBatchSize,
		QueryLimit:     config.DefaultQueryLimit,
		VisibleColumns: config.DefaultVisibleColumns,
		CacheSize:      config.DefaultCacheSize,
		TableName:      config.DefaultTableName,
		ExportPath:     config.DefaultExportPath,
		DefaultSQL:     config.DefaultSQL,
		LogLevel:       config.DefaultLogLevel,
		Engine:         &config.EngineConfig{Type: "duckdb"},
	}
}

// openFile validates the extension and opens the Parquet file.
func (c *CommandContext) openFile(path string) (*source.FileSource, error) {
	if err := codec.ValidateExtension(path); err != nil {
		return nil, err
	}
	return source.OpenFile(path, c.Cfg.BatchSize, c.Logger)
}

// openEngine connects the configured query engine and exposes path as the
// configured table name.
func (c *CommandContext) openEngine(ctx context.Context, path string) (adapter.Adapter, error) {
	eng, err := adapter.Open(ctx, c.Cfg.Engine.AdapterConfig(), c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start query engine: %w", err)
	}
	if err := eng.BindTable(ctx, c.Cfg.TableName, path); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("failed to bind %s as %s: %w", path, c.Cfg.TableName, err)
	}
	return eng, nil
}

// openHistory opens the history store. A nil store with a nil error means
// history is disabled.
func (c *CommandContext) openHistory() (*history.Store, error) {
	if c.Cfg.HistoryPath == "" {
		return nil, nil
	}
	return history.Open(c.Cfg.HistoryPath, c.Logger)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// stdinIsTerminal reports whether cmd reads from an interactive terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && isTerminal(f)
}
