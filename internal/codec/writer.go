package codec

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/leapstack-labs/peak/pkg/core"
)

// Writer streams batches into a new Parquet file. Each Write becomes one
// row group; nothing beyond the current batch is held in memory.
type Writer struct {
	path   string
	schema core.Schema
	as     *arrow.Schema
	fw     *pqarrow.FileWriter
	rows   int64
	logger *slog.Logger
}

// Create creates path (truncating an existing file) and prepares a writer
// for schema.
func Create(path string, schema core.Schema, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("cannot write parquet file without columns")
	}

	f, err := os.Create(path) //nolint:gosec // destination chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	as := arrowSchema(schema)
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(as, f, props, arrowProps)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &Writer{
		path:   path,
		schema: schema,
		as:     as,
		fw:     fw,
		logger: logger,
	}, nil
}

// Write appends the rows of b. The batch schema must match the writer's
// column count.
func (w *Writer) Write(b core.Batch) error {
	if b.Empty() {
		return nil
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if len(b.Schema) != len(w.schema) {
		return fmt.Errorf("batch has %d columns, writer expects %d", len(b.Schema), len(w.schema))
	}

	rb := array.NewRecordBuilder(memory.DefaultAllocator, w.as)
	defer rb.Release()
	rb.Reserve(b.Len())

	for r, row := range b.Rows {
		for c, v := range row {
			if err := appendCell(rb.Field(c), w.schema[c].Kind, v); err != nil {
				return fmt.Errorf("row %d column %q: %w", w.rows+int64(r), w.schema[c].Name, err)
			}
		}
	}

	rec := rb.NewRecord()
	defer rec.Release()

	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write row group: %w", err)
	}
	w.rows += int64(b.Len())
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 {
	return w.rows
}

// Close writes the footer and closes the file.
func (w *Writer) Close() error {
	// The file writer closes the underlying file.
	if err := w.fw.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	w.logger.Debug("wrote parquet file",
		slog.String("path", w.path),
		slog.Int64("rows", w.rows))
	return nil
}
