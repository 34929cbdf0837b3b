package testutil

import (
	"context"
	"sync"

	"github.com/leapstack-labs/peak/pkg/core"
)

// MemResult is an in-memory core.Result.
type MemResult struct {
	mu     sync.Mutex
	schema core.Schema
	rows   []core.Row
	opens  int
	closed bool
}

// NewMemResult returns a result over rows.
func NewMemResult(schema core.Schema, rows []core.Row) *MemResult {
	return &MemResult{schema: schema, rows: rows}
}

// IntResult returns a single-column result with values 0..n-1.
func IntResult(n int) *MemResult {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.Row{int64(i)}
	}
	return NewMemResult(core.Schema{{Name: "n", Kind: core.KindInt, DBType: "BIGINT"}}, rows)
}

// Schema implements core.Result.
func (r *MemResult) Schema() core.Schema { return r.schema }

// RowCount implements core.Result.
func (r *MemResult) RowCount() int64 { return int64(len(r.rows)) }

// Open implements core.Result.
func (r *MemResult) Open(context.Context) (core.RowStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	return &memStream{rows: r.rows}, nil
}

// Close implements core.Result.
func (r *MemResult) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *MemResult) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Opens returns how many streams were opened.
func (r *MemResult) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

type memStream struct {
	rows []core.Row
	pos  int
}

func (s *memStream) Next(n int) ([]core.Row, error) {
	end := min(s.pos+n, len(s.rows))
	out := s.rows[s.pos:end]
	s.pos = end
	return out, nil
}

func (s *memStream) Close() error { return nil }
