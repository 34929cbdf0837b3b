// Package duckdb provides the DuckDB query engine adapter for peak.
//
// The adapter registers itself as "duckdb". Import this package with a
// blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/peak/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/peak/pkg/adapter"
	"github.com/leapstack-labs/peak/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// ResultSchema is the schema holding materialized query results.
const ResultSchema = "peak_results"

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.setup(ctx); err != nil {
		_ = a.Close()
		return err
	}

	a.Logger.Debug("connected to duckdb",
		slog.String("path", cfg.Path),
		slog.Int("extensions", len(params.Extensions)),
		slog.Int("settings", len(params.Settings)))
	return nil
}

func (a *Adapter) setup(ctx context.Context) error {
	for _, stmt := range a.params.settingStatements() {
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply duckdb setting: %w", err)
		}
	}

	for _, ext := range a.params.Extensions {
		if err := a.Exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if err := a.Exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	// Results left behind by a previous run of a file-backed database.
	if err := a.Exec(ctx, "DROP SCHEMA IF EXISTS "+ResultSchema+" CASCADE"); err != nil {
		return err
	}
	return a.Exec(ctx, "CREATE SCHEMA "+ResultSchema)
}

// BindTable exposes the Parquet file at path as a view called name.
func (a *Adapter) BindTable(ctx context.Context, name, path string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)",
		quoteIdent(name),
		quoteLiteral(absPath),
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to bind %s: %w", path, err)
	}

	a.Logger.Debug("bound parquet file", slog.String("table", name), slog.String("path", absPath))
	return nil
}

// Execute runs query and materializes its rows in the results schema.
func (a *Adapter) Execute(ctx context.Context, query string) (core.Result, error) {
	res, err := a.Materialize(ctx, query, a.NextResultTable(ResultSchema), typeMapper{})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
