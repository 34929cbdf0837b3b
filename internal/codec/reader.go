// Package codec reads and writes Parquet files in fixed-size batches using
// the arrow-go Parquet implementation.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/leapstack-labs/peak/pkg/core"
)

// ErrUnsupportedFileType is returned for files that are not Parquet.
var ErrUnsupportedFileType = errors.New("UNSUPPORTED_FILE_TYPE (.parquet or .pqt only)")

// ErrClosed is returned by a reader after Close.
var ErrClosed = errors.New("parquet reader closed")

// ValidateExtension checks that path has a Parquet extension.
func ValidateExtension(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pqt":
		return nil
	default:
		return ErrUnsupportedFileType
	}
}

// Reader reads a Parquet file batch by batch. It is safe for concurrent use;
// reads are serialized.
type Reader struct {
	mu sync.Mutex

	path      string
	batchSize int
	numRows   int64
	schema    core.Schema
	logger    *slog.Logger

	pf     *file.Reader
	fr     *pqarrow.FileReader
	rr     pqarrow.RecordReader
	closed bool
}

// Open opens path and reads its footer. No row data is read.
func Open(path string, batchSize int, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if err := ValidateExtension(path); err != nil {
		return nil, err
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{
		BatchSize: int64(batchSize),
	}, memory.DefaultAllocator)
	if err != nil {
		_ = pf.Close()
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	as, err := fr.Schema()
	if err != nil {
		_ = pf.Close()
		return nil, fmt.Errorf("failed to read arrow schema: %w", err)
	}

	r := &Reader{
		path:      path,
		batchSize: batchSize,
		numRows:   pf.NumRows(),
		schema:    schemaFromArrow(as),
		logger:    logger,
		pf:        pf,
		fr:        fr,
	}

	logger.Debug("opened parquet file",
		slog.String("path", path),
		slog.Int64("rows", r.numRows),
		slog.Int("columns", len(r.schema)),
		slog.Int("row_groups", pf.NumRowGroups()))

	return r, nil
}

// Path returns the file path.
func (r *Reader) Path() string {
	return r.path
}

// NumRows returns the row count from the file footer.
func (r *Reader) NumRows() int64 {
	return r.numRows
}

// Schema returns the file columns.
func (r *Reader) Schema() core.Schema {
	return r.schema
}

// BatchSize returns the configured rows per batch.
func (r *Reader) BatchSize() int {
	return r.batchSize
}

// ReadBatch reads the batch at index. An index past the end yields an empty
// batch.
func (r *Reader) ReadBatch(ctx context.Context, index int) (core.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return core.Batch{}, ErrClosed
	}
	if index < 0 {
		return core.Batch{}, fmt.Errorf("negative batch index %d", index)
	}

	start := int64(index) * int64(r.batchSize)
	if start >= r.numRows {
		return core.Batch{Schema: r.schema}, nil
	}

	if r.rr == nil {
		rr, err := r.fr.GetRecordReader(context.Background(), nil, nil)
		if err != nil {
			return core.Batch{}, fmt.Errorf("failed to create record reader: %w", err)
		}
		r.rr = rr
	}

	if err := r.rr.SeekToRow(start); err != nil {
		return core.Batch{}, fmt.Errorf("failed to seek to row %d: %w", start, err)
	}

	rows := make([]core.Row, 0, r.batchSize)
	for len(rows) < r.batchSize {
		if err := ctx.Err(); err != nil {
			return core.Batch{}, err
		}
		if !r.rr.Next() {
			break
		}
		rec := r.rr.Record()
		need := r.batchSize - len(rows)
		n := int(rec.NumRows())
		if n > need {
			n = need
		}
		rows = append(rows, rowsFromRecord(rec, 0, n)...)
	}
	if err := r.rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return core.Batch{}, fmt.Errorf("failed to read batch %d: %w", index, err)
	}

	return core.Batch{Schema: r.schema, Rows: rows}, nil
}

// Close releases the file. Later reads fail with ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.rr != nil {
		r.rr.Release()
		r.rr = nil
	}
	return r.pf.Close()
}
