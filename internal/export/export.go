// Package export streams a data source into a new Parquet file one batch at
// a time.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/peak/internal/codec"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/pkg/core"
)

// Stats describes a finished export.
type Stats struct {
	Path    string
	Rows    int64
	Batches int
	Elapsed time.Duration
}

// Service writes data sources to Parquet files.
type Service struct {
	logger *slog.Logger
}

// New creates an export service.
func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger}
}

// Export writes every row of src to path. Batches are fetched sequentially
// until the source's row count is reached or a fetch returns no rows, so at
// most one batch is held in memory.
//
// Errors are WriteFailed for destination failures and the fetch error kind
// (SourceUnavailable, FetchFailed) for source failures. A partially written
// file is left in place.
func (s *Service) Export(ctx context.Context, src source.DataSource, path string) (Stats, error) {
	start := time.Now()
	stats := Stats{Path: path}
	op := "export to " + path

	w, err := codec.Create(path, src.Schema(), s.logger)
	if err != nil {
		return stats, core.Errorf(core.WriteFailed, op, err)
	}

	total, known := src.RowCountHint()
	for index := 0; !known || stats.Rows < total; index++ {
		b, err := src.Fetch(ctx, index)
		if err != nil {
			_ = w.Close()
			return stats, classifyFetch(op, err)
		}
		if b.Empty() {
			break
		}
		if err := w.Write(b); err != nil {
			_ = w.Close()
			return stats, core.Errorf(core.WriteFailed, op, err)
		}
		stats.Rows += int64(b.Len())
		stats.Batches++
	}

	if err := w.Close(); err != nil {
		return stats, core.Errorf(core.WriteFailed, op, err)
	}
	stats.Elapsed = time.Since(start)

	s.logger.Info("exported data",
		slog.String("path", path),
		slog.String("source", src.Kind().String()),
		slog.Int64("rows", stats.Rows),
		slog.Int("batches", stats.Batches),
		slog.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func classifyFetch(op string, err error) error {
	if core.KindOf(err) != 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return core.Errorf(core.FetchFailed, op, err)
}
