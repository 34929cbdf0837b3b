package commands

import (
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/peak/internal/app"
	"github.com/leapstack-labs/peak/internal/cli/config"
	"github.com/leapstack-labs/peak/internal/history"
	"github.com/leapstack-labs/peak/internal/ui"
	"github.com/leapstack-labs/peak/pkg/adapter"
)

// ErrNotTerminal is returned when an interactive command runs without a
// terminal.
var ErrNotTerminal = errors.New("this command requires an interactive terminal (use 'peak query' for scripts)")

// NewPeakCommand creates the read-only browsing command.
func NewPeakCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peak <file>",
		Short: "Browse a Parquet file",
		Long: `Browse a Parquet file in a full-screen table.

Rows are read lazily in batches; only the current batch is held in memory.

Keys:
  ↑/↓          move the row cursor
  PgUp/PgDn    previous/next batch
  ←/→          scroll columns
  Esc, Ctrl+Q  quit`,
		Example: `  peak peak orders.parquet
  peak peak orders.parquet -b 500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, args[0], app.ModePeak)
		},
	}

	addBrowseFlags(cmd)
	return cmd
}

// NewEditCommand creates the SQL editing command.
func NewEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Query a Parquet file with SQL",
		Long: `Open a Parquet file with a SQL editor above the preview table.

The file is available as the table "data". Queries without a LIMIT are
capped at 1000 rows for preview; an explicit LIMIT is kept.

Keys:
  F2           switch focus between editor and table
  Ctrl+E       execute the SQL
  Ctrl+R       reset the editor and show the file again
  Ctrl+S       save the query result as Parquet
  Esc, Ctrl+Q  quit`,
		Example: `  peak edit orders.parquet
  peak edit orders.parquet --limit 0      # no preview cap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, args[0], app.ModeEdit)
		},
	}

	addBrowseFlags(cmd)
	cmd.Flags().Int("limit", config.DefaultQueryLimit, "Row cap for queries without LIMIT (0 disables)")
	cmd.Flags().String("export-path", config.DefaultExportPath, "Default path offered by the save prompt")
	return cmd
}

func addBrowseFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("batch-size", "b", config.DefaultBatchSize, "Rows per batch")
	cmd.Flags().Int("visible-columns", config.DefaultVisibleColumns, "Columns shown at once")
}

func runBrowse(cmd *cobra.Command, path string, mode app.Mode) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	file, err := cc.openFile(path)
	if err != nil {
		return err
	}
	if !stdinIsTerminal(cmd) {
		_ = file.Close()
		return ErrNotTerminal
	}

	opts := app.Options{
		Mode:           mode,
		VisibleColumns: cc.Cfg.VisibleColumns,
		QueryLimit:     cc.Cfg.SessionLimit(),
		CacheSize:      cc.Cfg.CacheSize,
		ExportPath:     cc.Cfg.ExportPath,
		DefaultSQL:     cc.Cfg.DefaultSQL,
		Logger:         cc.Logger,
	}

	if mode == app.ModeEdit {
		var (
			eng   adapter.Adapter
			store *history.Store
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			eng, err = cc.openEngine(gctx, path)
			return err
		})
		g.Go(func() error {
			var err error
			store, err = cc.openHistory()
			return err
		})
		if err := g.Wait(); err != nil {
			_ = file.Close()
			if eng != nil {
				_ = eng.Close()
			}
			if store != nil {
				_ = store.Close()
			}
			return err
		}
		defer func() { _ = eng.Close() }()

		opts.Runner = eng
		if store != nil {
			defer func() { _ = store.Close() }()
			opts.History = store
		}
	}

	c, err := app.New(ctx, file, opts)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to start %s mode: %w", mode, err)
	}
	defer func() { _ = c.Close() }()

	cc.Logger.Info("opening terminal UI",
		slog.String("mode", mode.String()),
		slog.String("path", path),
		slog.Int("batch_size", cc.Cfg.BatchSize))

	return ui.Run(ctx, c, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
}
