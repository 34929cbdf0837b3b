// Package adapter provides the query engine adapter contract used by peak
// to run SQL over the opened file.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with the registry from their init functions.
package adapter

import (
	"context"

	"github.com/leapstack-labs/peak/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all query engine adapters must
// implement.
type Adapter interface {
	// Connect establishes a connection to the engine using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases every result still held.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// BindTable exposes the Parquet file at path as the table name.
	BindTable(ctx context.Context, name, path string) error

	// Execute runs a query and materializes its rows inside the engine.
	// The returned result is read through forward-only streams and must be
	// closed by the caller.
	Execute(ctx context.Context, sql string) (core.Result, error)

	// DialectName returns the SQL dialect name of the engine.
	DialectName() string
}
