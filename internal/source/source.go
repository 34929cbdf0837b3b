// Package source provides the DataSource abstraction over the two places
// rows come from: the opened Parquet file and the result of an executed
// query. Both expose random access by batch index.
package source

import (
	"context"

	"github.com/leapstack-labs/peak/pkg/core"
)

// Kind tags which variant a DataSource is.
type Kind int

// Source kinds.
const (
	KindFile Kind = iota
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "file"
}

// DataSource produces fixed-size batches on demand.
//
// Implementations are safe for concurrent use: fetches run off the
// foreground loop while the foreground reads Schema and RowCountHint.
type DataSource interface {
	// Kind reports the variant.
	Kind() Kind

	// Label is a short human description (file path or SQL text).
	Label() string

	// Schema is fixed for the lifetime of the source.
	Schema() core.Schema

	// BatchSize is the maximum number of rows per batch.
	BatchSize() int

	// RowCountHint returns the total row count when known.
	RowCountHint() (int64, bool)

	// Fetch returns batch index. An index past the end returns an empty
	// batch. After Close it fails with core.SourceUnavailable.
	Fetch(ctx context.Context, index int) (core.Batch, error)

	// Close invalidates the source and releases its resources.
	Close() error
}

// BatchCount returns ceil(total/batchSize) when the total is known.
func BatchCount(src DataSource) (int, bool) {
	total, ok := src.RowCountHint()
	if !ok {
		return 0, false
	}
	bs := int64(src.BatchSize())
	return int((total + bs - 1) / bs), true
}

var (
	_ DataSource = (*FileSource)(nil)
	_ DataSource = (*QuerySource)(nil)
)
