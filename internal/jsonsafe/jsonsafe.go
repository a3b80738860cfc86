// Package jsonsafe converts values scanned out of the analytical engine
// into shapes that survive JSON serialization.
//
// The engine hands back driver-native types: time.Time for temporal
// columns, float64 that may carry NaN or an infinity, []byte for text,
// and the occasional exotic integer width. None of those are safe to put
// in a JSON document as-is, so every value crossing into a QueryResult
// passes through Value.
package jsonsafe

import (
	"math"
	"math/big"
	"time"
)

// Value converts a single scanned value into a JSON-safe form.
//
// Rules:
//   - nil stays nil (the absence marker)
//   - NaN and infinities become nil
//   - temporal values become their textual form
//   - byte slices become strings
//   - integer widths collapse to int64, floats to float64
//   - anything else passes through unchanged
func Value(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case time.Time:
		return x.Format(time.RFC3339)
	case time.Duration:
		return x.String()
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return new(big.Int).SetUint64(x).String()
		}
		return int64(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	default:
		return v
	}
}

// Row converts every value of a row in place and returns it.
func Row(row map[string]any) map[string]any {
	for k, v := range row {
		row[k] = Value(v)
	}
	return row
}

// Values converts a slice of values in place and returns it.
func Values(vals []any) []any {
	for i, v := range vals {
		vals[i] = Value(v)
	}
	return vals
}
