package codec

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/leapstack-labs/peak/pkg/core"
)

// kindOf maps an arrow data type onto a column kind.
func kindOf(dt arrow.DataType) core.Kind {
	switch dt.ID() {
	case arrow.NULL:
		return core.KindNull
	case arrow.BOOL:
		return core.KindBool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return core.KindInt
	case arrow.UINT64:
		return core.KindUint
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return core.KindFloat
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY:
		return core.KindString
	case arrow.TIMESTAMP:
		return core.KindTimestamp
	case arrow.DATE32, arrow.DATE64:
		return core.KindDate
	default:
		return core.KindOther
	}
}

// schemaFromArrow converts an arrow schema into a core schema.
func schemaFromArrow(s *arrow.Schema) core.Schema {
	fields := s.Fields()
	out := make(core.Schema, len(fields))
	for i, f := range fields {
		out[i] = core.Field{
			Name:   f.Name,
			Kind:   kindOf(f.Type),
			DBType: f.Type.String(),
		}
	}
	return out
}

// arrowType returns the arrow type written for a column kind.
func arrowType(k core.Kind) arrow.DataType {
	switch k {
	case core.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case core.KindInt:
		return arrow.PrimitiveTypes.Int64
	case core.KindUint:
		return arrow.PrimitiveTypes.Uint64
	case core.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case core.KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case core.KindDate:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowSchema builds the arrow schema used when writing a core schema.
func arrowSchema(s core.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, f := range s {
		fields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// valueAt extracts a cell from an arrow column as a core value.
func valueAt(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(i)
	case *array.Int8:
		return int64(c.Value(i))
	case *array.Int16:
		return int64(c.Value(i))
	case *array.Int32:
		return int64(c.Value(i))
	case *array.Int64:
		return c.Value(i)
	case *array.Uint8:
		return int64(c.Value(i))
	case *array.Uint16:
		return int64(c.Value(i))
	case *array.Uint32:
		return int64(c.Value(i))
	case *array.Uint64:
		return c.Value(i)
	case *array.Float16:
		return float64(c.Value(i).Float32())
	case *array.Float32:
		return float64(c.Value(i))
	case *array.Float64:
		return c.Value(i)
	case *array.Decimal128:
		return c.Value(i).ToFloat64(c.DataType().(*arrow.Decimal128Type).Scale)
	case *array.Decimal256:
		return c.Value(i).ToFloat64(c.DataType().(*arrow.Decimal256Type).Scale)
	case *array.String:
		return c.Value(i)
	case *array.LargeString:
		return c.Value(i)
	case *array.Binary:
		return string(c.Value(i))
	case *array.LargeBinary:
		return string(c.Value(i))
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(i).ToTime(unit)
	case *array.Date32:
		return c.Value(i).ToTime()
	case *array.Date64:
		return c.Value(i).ToTime()
	default:
		return col.ValueStr(i)
	}
}

// rowsFromRecord converts rows [from, to) of a record into core rows.
func rowsFromRecord(rec arrow.Record, from, to int) []core.Row {
	ncols := int(rec.NumCols())
	rows := make([]core.Row, 0, to-from)
	for r := from; r < to; r++ {
		row := make(core.Row, ncols)
		for c := 0; c < ncols; c++ {
			row[c] = valueAt(rec.Column(c), r)
		}
		rows = append(rows, row)
	}
	return rows
}

// appendCell appends one core value to a builder created for kind.
func appendCell(b array.Builder, kind core.Kind, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch kind {
	case core.KindBool:
		val, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		b.(*array.BooleanBuilder).Append(val)
	case core.KindInt:
		val, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		b.(*array.Int64Builder).Append(val)
	case core.KindUint:
		switch val := v.(type) {
		case uint64:
			b.(*array.Uint64Builder).Append(val)
		case int64:
			if val < 0 {
				return fmt.Errorf("negative value %d in unsigned column", val)
			}
			b.(*array.Uint64Builder).Append(uint64(val))
		default:
			return fmt.Errorf("expected uint64, got %T", v)
		}
	case core.KindFloat:
		switch val := v.(type) {
		case float64:
			b.(*array.Float64Builder).Append(val)
		case int64:
			b.(*array.Float64Builder).Append(float64(val))
		default:
			return fmt.Errorf("expected float64, got %T", v)
		}
	case core.KindTimestamp:
		val, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(val.UnixMicro()))
	case core.KindDate:
		val, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		b.(*array.Date32Builder).Append(arrow.Date32FromTime(val))
	default:
		b.(*array.StringBuilder).Append(core.FormatValue(v))
	}
	return nil
}
