package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/peak/pkg/core"
)

// TypeMapper translates engine column types and driver values into core
// kinds and cell values.
type TypeMapper interface {
	// Kind maps a driver DatabaseTypeName onto a column kind.
	Kind(dbType string) core.Kind

	// Normalize converts a scanned driver value into a core cell value
	// (nil, bool, int64, uint64, float64, string or time.Time).
	Normalize(v any) any
}

// SQLResult is a materialized query result stored in an engine table.
type SQLResult struct {
	db     *sql.DB
	table  string
	schema core.Schema
	rows   int64
	types  TypeMapper
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ core.Result = (*SQLResult)(nil)

// Table returns the engine table holding the rows.
func (r *SQLResult) Table() string { return r.table }

// Schema implements core.Result.
func (r *SQLResult) Schema() core.Schema { return r.schema }

// RowCount implements core.Result.
func (r *SQLResult) RowCount() int64 { return r.rows }

// Open implements core.Result.
func (r *SQLResult) Open(ctx context.Context) (core.RowStream, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("result %s is closed", r.table)
	}

	//nolint:gosec,rowserrcheck // table names are generated; Err is checked in Next
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+r.table)
	if err != nil {
		return nil, fmt.Errorf("failed to open result stream: %w", err)
	}
	return &sqlStream{rows: rows, width: len(r.schema), types: r.types}, nil
}

// Close implements core.Result. It drops the backing table.
func (r *SQLResult) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	//nolint:gosec // table names are generated
	if _, err := r.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+r.table); err != nil {
		return fmt.Errorf("failed to drop result table %s: %w", r.table, err)
	}
	r.logger.Debug("dropped query result", slog.String("table", r.table))
	return nil
}

type sqlStream struct {
	rows  *sql.Rows
	width int
	types TypeMapper
	done  bool
}

func (s *sqlStream) Next(n int) ([]core.Row, error) {
	if s.done {
		return nil, nil
	}

	out := make([]core.Row, 0, n)
	vals := make([]any, s.width)
	dest := make([]any, s.width)
	for i := range vals {
		dest[i] = &vals[i]
	}

	for len(out) < n {
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Err(); err != nil {
				return nil, fmt.Errorf("failed to iterate result: %w", err)
			}
			break
		}
		if err := s.rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(core.Row, s.width)
		for i, v := range vals {
			row[i] = s.types.Normalize(v)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *sqlStream) Close() error {
	return s.rows.Close()
}
