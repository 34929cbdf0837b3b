// Package core defines the shared data model for peak.
//
// It holds the batch model (Schema, Row, Batch) that flows between the
// Parquet codec, the query engine and the windowing layer, the error taxonomy
// used across the engine, and the boundary interfaces (Result, RowStream)
// that query engine adapters implement.
//
// Packages outside pkg/core depend on these types; core itself depends only
// on the standard library.
package core
