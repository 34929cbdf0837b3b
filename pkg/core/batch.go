package core

import (
	"fmt"
	"strconv"
	"time"
)

// Kind tags the value type carried by a column.
type Kind int

// Column kinds. Every codec or engine type maps to exactly one Kind.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	// KindUint holds unsigned 64-bit values, which do not fit KindInt.
	KindUint
	KindFloat
	KindString
	KindTimestamp
	KindDate
	KindOther
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindUint:      "uint",
	KindFloat:     "float",
	KindString:    "string",
	KindTimestamp: "timestamp",
	KindDate:      "date",
	KindOther:     "other",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field describes one column.
type Field struct {
	Name string
	Kind Kind
	// DBType is the type name reported by the producer (arrow or DuckDB).
	DBType string
}

// Schema is the ordered column list of a batch.
type Schema []Field

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s)
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Row is one record. Cells are nil, bool, int64, uint64, float64, string or
// time.Time, and len(Row) equals the schema length.
type Row []any

// Batch is an immutable window of rows produced by a codec or query engine.
type Batch struct {
	Schema Schema
	Rows   []Row
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	return len(b.Rows)
}

// Empty reports whether the batch carries no rows.
func (b Batch) Empty() bool {
	return len(b.Rows) == 0
}

// Validate checks that every row conforms to the batch schema.
func (b Batch) Validate() error {
	for i, row := range b.Rows {
		if len(row) != len(b.Schema) {
			return fmt.Errorf("row %d has %d cells, schema has %d columns", i, len(row), len(b.Schema))
		}
	}
	return nil
}

// Display layouts.
const (
	TimestampLayout = "2006-01-02 15:04:05.999999"
	DateLayout      = "2006-01-02"
)

// FormatValue renders a cell for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(TimestampLayout)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatCell renders a cell using its column kind.
func FormatCell(f Field, v any) string {
	if t, ok := v.(time.Time); ok && f.Kind == KindDate {
		return t.Format(DateLayout)
	}
	return FormatValue(v)
}

// FormatRow renders every cell of a row against its schema.
func FormatRow(s Schema, r Row) []string {
	out := make([]string, len(r))
	for i, v := range r {
		if i < len(s) {
			out[i] = FormatCell(s[i], v)
			continue
		}
		out[i] = FormatValue(v)
	}
	return out
}
