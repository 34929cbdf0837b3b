package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/peak/internal/cli/config"
	"github.com/leapstack-labs/peak/internal/cli/output"
	"github.com/leapstack-labs/peak/internal/export"
	"github.com/leapstack-labs/peak/internal/history"
	"github.com/leapstack-labs/peak/internal/query"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/pkg/adapter"
	"github.com/leapstack-labs/peak/pkg/core"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
	Out    string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <file> [SQL]",
		Short: "Run SQL against a Parquet file",
		Long: `Run SQL against a Parquet file without the full-screen UI.

The file is available as the table "data". Queries without a LIMIT are
capped at the configured query limit (1000 by default, --limit 0 disables);
the note in the output says when the cap applied.

SQL is taken from the arguments, from --input, or from piped stdin. When
none is given on a terminal, an interactive REPL starts.`,
		Example: `  # Execute SQL directly
  peak query orders.parquet "SELECT name, price FROM data WHERE quantity > 100"

  # Save the full result as Parquet
  peak query orders.parquet "SELECT * FROM data WHERE quantity > 100" --limit 0 --out big.parquet

  # Output as CSV
  peak query orders.parquet "SELECT * FROM data" --format csv

  # Interactive mode
  peak query orders.parquet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, markdown, json, csv (default: --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Save the result to this Parquet file instead of printing rows")
	cmd.Flags().Int("limit", config.DefaultQueryLimit, "Row cap for queries without LIMIT (0 disables)")
	cmd.Flags().IntP("batch-size", "b", config.DefaultBatchSize, "Rows fetched per batch")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "markdown", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// queryRun holds what a query command needs between executions.
type queryRun struct {
	cc       *CommandContext
	renderer *output.Renderer
	path     string
	file     *source.FileSource
	engine   adapter.Adapter
	history  *history.Store
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	r := cc.Renderer
	if opts.Format != "" {
		mode, err := output.ParseMode(opts.Format)
		if err != nil {
			return err
		}
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	}

	// Determine SQL source
	var sqlText string
	interactive := false
	switch {
	case len(args) > 1:
		sqlText = strings.Join(args[1:], " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !stdinIsTerminal(cmd):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	default:
		interactive = true
	}

	run, err := openQueryRun(ctx, cc, r, args[0])
	if err != nil {
		return err
	}
	defer run.Close()

	if interactive {
		return runQueryREPL(cmd, run)
	}
	return run.execute(ctx, sqlText, opts.Out)
}

func openQueryRun(ctx context.Context, cc *CommandContext, r *output.Renderer, path string) (*queryRun, error) {
	file, err := cc.openFile(path)
	if err != nil {
		return nil, err
	}

	eng, err := cc.openEngine(ctx, path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	store, err := cc.openHistory()
	if err != nil {
		// History is a convenience; queries still run without it.
		r.Warn(fmt.Sprintf("query history disabled: %v", err))
		cc.Logger.Warn("failed to open history", slog.String("error", err.Error()))
		store = nil
	}

	return &queryRun{
		cc:       cc,
		renderer: r,
		path:     path,
		file:     file,
		engine:   eng,
		history:  store,
	}, nil
}

// Close releases the engine, the file and the history store.
func (q *queryRun) Close() {
	_ = q.engine.Close()
	_ = q.file.Close()
	if q.history != nil {
		_ = q.history.Close()
	}
}

// execute runs sqlText through a query session, then prints the rows or
// saves them to out.
func (q *queryRun) execute(ctx context.Context, sqlText, out string) error {
	cfg := q.cc.Cfg
	session := query.NewSession(q.engine, query.Options{
		Limit:     cfg.SessionLimit(),
		BatchSize: cfg.BatchSize,
		CacheSize: cfg.CacheSize,
		Logger:    q.cc.Logger,
	})
	defer session.Close()

	session.SetText(sqlText)
	task, err := session.Execute(ctx)
	if err != nil {
		return err
	}
	done := task()
	session.Complete(done)
	q.record(ctx, done)

	if err := session.LastError(); err != nil {
		return err
	}
	result := session.Result()
	total, _ := result.RowCountHint()
	limit, _ := session.AppliedLimit()

	if out != "" {
		stats, err := export.New(q.cc.Logger).Export(ctx, result, out)
		if err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		if q.renderer.EffectiveMode() == output.ModeJSON {
			return q.renderer.JSON(output.QueryOutput{
				SQL:          done.SQL,
				Rows:         stats.Rows,
				AppliedLimit: limit,
				Columns:      result.Schema().Names(),
				Data:         []map[string]string{},
				Saved:        stats.Path,
			})
		}
		q.renderer.Success(fmt.Sprintf("Saved %s rows to %s", output.FormatCount(stats.Rows), stats.Path))
		q.noteLimit(limit)
		return nil
	}

	rows, err := collectRows(ctx, result)
	if err != nil {
		return err
	}
	header := result.Schema().Names()

	if q.renderer.EffectiveMode() == output.ModeJSON {
		data := make([]map[string]string, len(rows))
		for i, row := range rows {
			m := make(map[string]string, len(header))
			for j, h := range header {
				m[h] = row[j]
			}
			data[i] = m
		}
		return q.renderer.JSON(output.QueryOutput{
			SQL:          done.SQL,
			Rows:         total,
			AppliedLimit: limit,
			Columns:      header,
			Data:         data,
		})
	}

	if err := q.renderer.Table(header, rows); err != nil {
		return err
	}
	q.noteLimit(limit)
	return nil
}

// noteLimit tells the user on stderr that the default cap applied, keeping
// stdout parseable.
func (q *queryRun) noteLimit(limit int) {
	if limit > 0 {
		q.renderer.Warn(fmt.Sprintf("limited to %s rows (use --limit 0 or an explicit LIMIT for more)",
			output.FormatCount(int64(limit))))
	}
}

func (q *queryRun) record(ctx context.Context, done query.Completion) {
	if q.history == nil {
		return
	}
	entry := history.Entry{
		Source:       q.file.Path(),
		SQL:          done.SQL,
		AppliedLimit: done.AppliedLimit,
		Elapsed:      done.Elapsed,
	}
	if done.Err != nil {
		entry.Error = done.Err.Error()
	} else if done.Source != nil {
		entry.Rows, _ = done.Source.RowCountHint()
	}
	if _, err := q.history.Record(ctx, entry); err != nil {
		q.cc.Logger.Warn("failed to record query", slog.String("error", err.Error()))
	}
}

// collectRows reads every batch of src and formats the cells for display.
func collectRows(ctx context.Context, src source.DataSource) ([][]string, error) {
	total, known := src.RowCountHint()
	var rows [][]string
	for i := 0; ; i++ {
		batch, err := src.Fetch(ctx, i)
		if err != nil {
			return nil, err
		}
		if batch.Empty() {
			return rows, nil
		}
		for _, row := range batch.Rows {
			rows = append(rows, core.FormatRow(batch.Schema, row))
		}
		if known && int64(len(rows)) >= total {
			return rows, nil
		}
	}
}
