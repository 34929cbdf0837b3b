package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/leapstack-labs/peak/pkg/core"
)

// ErrNotConnected is returned by operations on an adapter before Connect
// succeeds or after Close.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, Query and result materialization.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	resultSeq atomic.Int64
}

// Close closes the database connection. The adapter reports not connected
// afterwards.
func (b *BaseSQLAdapter) Close() error {
	if !b.IsConnected() {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing database connection")
	}
	db := b.DB
	b.DB = nil
	return db.Close()
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if !b.IsConnected() {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*sql.Rows, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// NextResultTable returns a fresh table name inside schema for a
// materialized result.
func (b *BaseSQLAdapter) NextResultTable(schema string) string {
	return fmt.Sprintf("%s.r_%d", schema, b.resultSeq.Add(1))
}

// Materialize stores the rows of query in table with CREATE TABLE AS and
// returns a result reading from it. The table is dropped when the result
// is closed.
func (b *BaseSQLAdapter) Materialize(ctx context.Context, query, table string, types TypeMapper) (*SQLResult, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctas := fmt.Sprintf("CREATE TABLE %s AS\n%s\n", table, strings.TrimSpace(query))
	if _, err := b.DB.ExecContext(ctx, ctas); err != nil {
		return nil, err
	}

	res := &SQLResult{db: b.DB, table: table, types: types, logger: logger}

	schema, err := b.describe(ctx, table, types)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("failed to describe result: %w", err)
	}
	res.schema = schema

	if res.rows, err = b.count(ctx, table); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("failed to count result rows: %w", err)
	}

	logger.Debug("materialized query result",
		slog.String("table", table),
		slog.Int64("rows", res.rows),
		slog.Int("columns", len(schema)))
	return res, nil
}

// describe reads the column list of table without fetching rows.
func (b *BaseSQLAdapter) describe(ctx context.Context, table string, types TypeMapper) (core.Schema, error) {
	rows, err := b.Query(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	schema := make(core.Schema, len(cols))
	for i, c := range cols {
		dbType := c.DatabaseTypeName()
		schema[i] = core.Field{Name: c.Name(), Kind: types.Kind(dbType), DBType: dbType}
	}
	return schema, rows.Err()
}

func (b *BaseSQLAdapter) count(ctx context.Context, table string) (int64, error) {
	rows, err := b.Query(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, sql.ErrNoRows
	}
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}
