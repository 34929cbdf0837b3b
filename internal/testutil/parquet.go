package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// FixtureModulus is the period of the quantity column in fixture files:
// row i has quantity i % FixtureModulus.
const FixtureModulus = 125

// FixtureEpoch is the timestamp of row 0; row i is i minutes later.
var FixtureEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// OrdersSchema is the arrow schema of fixture files.
var OrdersSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "created_at", Type: arrow.FixedWidthTypes.Timestamp_us},
}, nil)

// WriteOrdersParquet writes a parquet file with rows orders into dir and
// returns its path. Every tenth row has a NULL price. Rows are split into
// row groups of rowGroupSize rows (0 means a single row group).
func WriteOrdersParquet(t testing.TB, dir string, rows, rowGroupSize int) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("orders_%d.parquet", rows))
	f, err := os.Create(path)
	require.NoError(t, err)

	if rowGroupSize <= 0 {
		rowGroupSize = rows
	}
	if rowGroupSize == 0 {
		rowGroupSize = 1
	}

	props := parquet.NewWriterProperties(parquet.WithMaxRowGroupLength(int64(rowGroupSize)))
	fw, err := pqarrow.NewFileWriter(OrdersSchema, f, props, pqarrow.DefaultWriterProps())
	require.NoError(t, err)

	rb := array.NewRecordBuilder(memory.DefaultAllocator, OrdersSchema)
	defer rb.Release()

	for start := 0; start < rows; start += rowGroupSize {
		end := min(start+rowGroupSize, rows)
		for i := start; i < end; i++ {
			rb.Field(0).(*array.Int64Builder).Append(int64(i))
			rb.Field(1).(*array.StringBuilder).Append(fmt.Sprintf("item-%04d", i))
			rb.Field(2).(*array.Int64Builder).Append(int64(i % FixtureModulus))
			if i%10 == 0 {
				rb.Field(3).AppendNull()
			} else {
				rb.Field(3).(*array.Float64Builder).Append(float64(i) / 4)
			}
			ts := FixtureEpoch.Add(time.Duration(i) * time.Minute)
			rb.Field(4).(*array.TimestampBuilder).Append(arrow.Timestamp(ts.UnixMicro()))
		}
		rec := rb.NewRecord()
		err := fw.Write(rec)
		rec.Release()
		require.NoError(t, err)
	}

	require.NoError(t, fw.Close())
	return path
}

// CountQuantityAbove returns how many fixture rows have quantity > threshold.
func CountQuantityAbove(rows, threshold int) int {
	n := 0
	for i := 0; i < rows; i++ {
		if i%FixtureModulus > threshold {
			n++
		}
	}
	return n
}
