package duckdb

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/peak/pkg/core"
)

// typeMapper maps DuckDB column types and driver values onto core kinds
// and cell values.
type typeMapper struct{}

func (typeMapper) Kind(dbType string) core.Kind {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if strings.HasSuffix(t, "]") {
		return core.KindOther
	}
	switch t {
	case "BOOLEAN", "BOOL":
		return core.KindBool
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT",
		"UTINYINT", "USMALLINT", "UINTEGER":
		return core.KindInt
	case "UBIGINT":
		return core.KindUint
	case "FLOAT", "REAL", "DOUBLE":
		return core.KindFloat
	case "VARCHAR", "TEXT", "UUID", "ENUM":
		return core.KindString
	case "DATE":
		return core.KindDate
	case "DATETIME", "TIMESTAMPTZ":
		return core.KindTimestamp
	}
	switch {
	case strings.HasPrefix(t, "DECIMAL"):
		return core.KindFloat
	case strings.HasPrefix(t, "TIMESTAMP"):
		return core.KindTimestamp
	}
	return core.KindOther
}

func (typeMapper) Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, uint64, float64, string, time.Time:
		return x
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case duckdb.Decimal:
		return x.Float64()
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %dus", x.Months, x.Days, x.Micros)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
