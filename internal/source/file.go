package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/peak/internal/codec"
	"github.com/leapstack-labs/peak/pkg/core"
)

// FileSource reads batches straight from a Parquet file.
type FileSource struct {
	r      *codec.Reader
	logger *slog.Logger
}

// OpenFile opens path for batch reads. The row count is known upfront from
// the file footer.
func OpenFile(path string, batchSize int, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r, err := codec.Open(path, batchSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &FileSource{r: r, logger: logger}, nil
}

// Kind implements DataSource.
func (s *FileSource) Kind() Kind { return KindFile }

// Label implements DataSource.
func (s *FileSource) Label() string { return s.r.Path() }

// Path returns the file path.
func (s *FileSource) Path() string { return s.r.Path() }

// Schema implements DataSource.
func (s *FileSource) Schema() core.Schema { return s.r.Schema() }

// BatchSize implements DataSource.
func (s *FileSource) BatchSize() int { return s.r.BatchSize() }

// RowCountHint implements DataSource.
func (s *FileSource) RowCountHint() (int64, bool) { return s.r.NumRows(), true }

// Fetch implements DataSource.
func (s *FileSource) Fetch(ctx context.Context, index int) (core.Batch, error) {
	op := fmt.Sprintf("fetch batch %d", index)
	if index < 0 {
		return core.Batch{}, core.Errorf(core.InvalidNavigation, op, nil)
	}

	b, err := s.r.ReadBatch(ctx, index)
	if err != nil {
		if errors.Is(err, codec.ErrClosed) {
			return core.Batch{}, core.Errorf(core.SourceUnavailable, op, err)
		}
		return core.Batch{}, core.Errorf(core.FetchFailed, op, err)
	}

	s.logger.Debug("fetched file batch",
		slog.Int("index", index),
		slog.Int("rows", b.Len()))
	return b, nil
}

// Close implements DataSource.
func (s *FileSource) Close() error {
	return s.r.Close()
}
