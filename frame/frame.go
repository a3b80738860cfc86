// Package frame evaluates a closed set of tabular operations against a
// single sheet.
//
// This is the restricted counterpart to the engine's structured-query
// path: instead of evaluating caller-supplied expressions, callers pick
// one of five predefined operations by tag and supply structured
// arguments. Nothing else is reachable.
//
// Information Hiding:
// - Numeric-aware comparison rules hidden
// - Result-shape classification hidden

package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/richinex/tabula/internal/jsonsafe"
	"github.com/richinex/tabula/workbook"
)

// OpKind selects one of the predefined tabular operations.
type OpKind string

// The closed operation set.
const (
	OpFilter OpKind = "filter" // keep rows where column matches a predicate
	OpSelect OpKind = "select" // project a subset of columns
	OpHead   OpKind = "head"   // first n rows
	OpSort   OpKind = "sort"   // order rows by one column
	OpCount  OpKind = "count"  // number of rows
)

// defaultHeadRows is used when a head operation omits n.
const defaultHeadRows = 5

// Op is a single tagged operation with its structured arguments.
type Op struct {
	Kind       OpKind   `json:"operation"`
	Columns    []string `json:"columns,omitempty"`    // select
	N          int      `json:"n,omitempty"`          // head
	Column     string   `json:"column,omitempty"`     // filter, sort
	Comparator string   `json:"comparator,omitempty"` // filter: eq ne gt gte lt lte contains
	Value      string   `json:"value,omitempty"`      // filter operand
	Descending bool     `json:"descending,omitempty"` // sort
}

// ResultKind classifies the shape of an operation result.
type ResultKind string

const (
	ResultTable  ResultKind = "table"
	ResultSeries ResultKind = "series"
	ResultScalar ResultKind = "scalar"
)

// Result is the JSON-safe outcome of applying an Op.
type Result struct {
	Kind    ResultKind       `json:"type"`
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Shape   [2]int           `json:"shape,omitempty"`
	Name    string           `json:"name,omitempty"`   // series column name
	Values  []any            `json:"values,omitempty"` // series values
	Value   any              `json:"value,omitempty"`  // scalar value
}

// Apply runs op against the table and classifies the result: a
// single-column projection yields a series, count yields a scalar,
// everything else a table.
func Apply(t *workbook.Table, op Op) (*Result, error) {
	switch op.Kind {
	case OpFilter:
		return applyFilter(t, op)
	case OpSelect:
		return applySelect(t, op)
	case OpHead:
		return applyHead(t, op)
	case OpSort:
		return applySort(t, op)
	case OpCount:
		return &Result{Kind: ResultScalar, Value: len(t.Rows)}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op.Kind)
	}
}

func applyFilter(t *workbook.Table, op Op) (*Result, error) {
	idx, err := columnIndex(t, op.Column)
	if err != nil {
		return nil, err
	}
	match, err := predicate(op.Comparator, op.Value)
	if err != nil {
		return nil, err
	}

	filtered := &workbook.Table{Sheet: t.Sheet, Columns: t.Columns}
	for _, row := range t.Rows {
		// Absent cells never match a predicate.
		if row[idx] == nil {
			continue
		}
		if match(cellText(row[idx])) {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return tableResult(filtered), nil
}

func applySelect(t *workbook.Table, op Op) (*Result, error) {
	if len(op.Columns) == 0 {
		return nil, fmt.Errorf("select requires at least one column")
	}

	indices := make([]int, len(op.Columns))
	for i, col := range op.Columns {
		idx, err := columnIndex(t, col)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}

	if len(op.Columns) == 1 {
		// Single-column projection is a series.
		values := make([]any, 0, len(t.Rows))
		for _, row := range t.Rows {
			values = append(values, jsonsafe.Value(row[indices[0]]))
		}
		return &Result{Kind: ResultSeries, Name: op.Columns[0], Values: values}, nil
	}

	projected := &workbook.Table{Sheet: t.Sheet, Columns: op.Columns}
	for _, row := range t.Rows {
		out := make([]any, len(indices))
		for i, idx := range indices {
			out[i] = row[idx]
		}
		projected.Rows = append(projected.Rows, out)
	}
	return tableResult(projected), nil
}

func applyHead(t *workbook.Table, op Op) (*Result, error) {
	n := op.N
	if n <= 0 {
		n = defaultHeadRows
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	head := &workbook.Table{Sheet: t.Sheet, Columns: t.Columns, Rows: t.Rows[:n]}
	return tableResult(head), nil
}

func applySort(t *workbook.Table, op Op) (*Result, error) {
	idx, err := columnIndex(t, op.Column)
	if err != nil {
		return nil, err
	}

	sorted := &workbook.Table{Sheet: t.Sheet, Columns: t.Columns}
	sorted.Rows = append(sorted.Rows, t.Rows...)

	sort.SliceStable(sorted.Rows, func(i, j int) bool {
		a, b := sorted.Rows[i][idx], sorted.Rows[j][idx]
		// Absent cells sort last in either direction.
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if op.Descending {
			return compareCells(cellText(b), cellText(a)) < 0
		}
		return compareCells(cellText(a), cellText(b)) < 0
	})
	return tableResult(sorted), nil
}

func tableResult(t *workbook.Table) *Result {
	res := &Result{
		Kind:    ResultTable,
		Columns: t.Columns,
		Shape:   t.Shape(),
	}
	for _, row := range t.Rows {
		out := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			out[col] = jsonsafe.Value(row[i])
		}
		res.Rows = append(res.Rows, out)
	}
	return res
}

func columnIndex(t *workbook.Table, name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("column is required")
	}
	for i, col := range t.Columns {
		if col == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown column %q (have %s)", name, strings.Join(t.Columns, ", "))
}

// predicate builds a match function for a comparator and operand.
// Comparisons are numeric when both sides parse as numbers (after
// stripping thousands separators), textual otherwise.
func predicate(comparator, operand string) (func(string) bool, error) {
	switch comparator {
	case "eq", "":
		return func(cell string) bool { return compareCells(cell, operand) == 0 }, nil
	case "ne":
		return func(cell string) bool { return compareCells(cell, operand) != 0 }, nil
	case "gt":
		return func(cell string) bool { return compareCells(cell, operand) > 0 }, nil
	case "gte":
		return func(cell string) bool { return compareCells(cell, operand) >= 0 }, nil
	case "lt":
		return func(cell string) bool { return compareCells(cell, operand) < 0 }, nil
	case "lte":
		return func(cell string) bool { return compareCells(cell, operand) <= 0 }, nil
	case "contains":
		needle := strings.ToLower(operand)
		return func(cell string) bool { return strings.Contains(strings.ToLower(cell), needle) }, nil
	default:
		return nil, fmt.Errorf("unknown comparator %q", comparator)
	}
}

// cellText renders a non-nil cell for comparison. The reader produces
// string cells, but tables built by other callers are not assumed to.
func cellText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func compareCells(a, b string) int {
	fa, okA := parseNumber(a)
	fb, okB := parseNumber(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func parseNumber(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	return f, err == nil
}
