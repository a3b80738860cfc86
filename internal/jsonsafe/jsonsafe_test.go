package jsonsafe

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValueNaNAndInfBecomeNil(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Value(v); got != nil {
			t.Errorf("Value(%v) = %v, want nil", v, got)
		}
	}
}

func TestValueFiniteFloatPassesThrough(t *testing.T) {
	if got := Value(1200.5); got != 1200.5 {
		t.Errorf("expected 1200.5, got %v", got)
	}
}

func TestValueTemporalBecomesText(t *testing.T) {
	ts := time.Date(2025, 8, 1, 12, 30, 0, 0, time.UTC)
	got := Value(ts)
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected string, got %T", got)
	}
	if !strings.HasPrefix(s, "2025-08-01T12:30:00") {
		t.Errorf("unexpected temporal form: %q", s)
	}

	if got := Value(90 * time.Minute); got != "1h30m0s" {
		t.Errorf("expected duration text, got %v", got)
	}
}

func TestValueIntegerWidthsCollapse(t *testing.T) {
	cases := []any{int(7), int8(7), int16(7), int32(7), uint(7), uint8(7), uint16(7), uint32(7), uint64(7)}
	for _, v := range cases {
		if got := Value(v); got != int64(7) {
			t.Errorf("Value(%T) = %v (%T), want int64(7)", v, got, got)
		}
	}
}

func TestValueBytesBecomeString(t *testing.T) {
	if got := Value([]byte("Revenue")); got != "Revenue" {
		t.Errorf("expected string 'Revenue', got %v", got)
	}
}

func TestRowSurvivesSerialization(t *testing.T) {
	row := Row(map[string]any{
		"a": math.NaN(),
		"b": math.Inf(1),
		"c": time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		"d": 42.0,
		"e": nil,
	})

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("row not serializable after conversion: %v", err)
	}
	if strings.Contains(string(data), "NaN") || strings.Contains(string(data), "Inf") {
		t.Errorf("serialized row leaks non-finite values: %s", data)
	}
}

func TestValuesConvertsInPlace(t *testing.T) {
	vals := Values([]any{math.NaN(), int32(3), "ok"})
	if vals[0] != nil {
		t.Errorf("expected nil, got %v", vals[0])
	}
	if vals[1] != int64(3) {
		t.Errorf("expected int64(3), got %v", vals[1])
	}
	if vals[2] != "ok" {
		t.Errorf("expected 'ok', got %v", vals[2])
	}
}
