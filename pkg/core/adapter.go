package core

import "context"

// AdapterConfig holds configuration for connecting to a query engine.
type AdapterConfig struct {
	Type string
	// Path is the engine database path; empty means in-memory.
	Path   string
	Params map[string]any
}

// Result is a completed query result held by the engine. Rows are read
// through forward-only streams.
type Result interface {
	// Schema returns the result columns.
	Schema() Schema

	// RowCount returns the number of rows in the result.
	RowCount() int64

	// Open starts a new forward-only stream positioned at the first row.
	Open(ctx context.Context) (RowStream, error)

	// Close releases the result. Streams opened from it become invalid.
	Close() error
}

// RowStream iterates a result forward only.
type RowStream interface {
	// Next returns up to n rows. Fewer than n rows means the stream is
	// exhausted; later calls return no rows.
	Next(n int) ([]Row, error)

	// Close releases the stream.
	Close() error
}
