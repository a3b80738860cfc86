// Package workbook ingests multi-sheet spreadsheets.
//
// Every cell is read as text to sidestep ambiguous type inference;
// missing-value sentinels (blank, "-", "nan", "null") are normalized to
// nil so downstream aggregation treats them as absent rather than zero.
//
// Information Hiding:
// - Spreadsheet file format hidden behind excelize
// - Missing-value normalization rules hidden
// - Header/column naming fallbacks hidden

package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned when a workbook contains no sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Table holds one sheet's data with all cells as text or nil.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]any // each value is string or nil
}

// Shape returns (rows, columns).
func (t *Table) Shape() [2]int {
	return [2]int{len(t.Rows), len(t.Columns)}
}

// Sheets returns the sheet names of the workbook at path.
func Sheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	return sheets, nil
}

// ReadSheet reads an entire sheet as text. The first row becomes the
// column header; data rows are padded to the header width with nil.
func ReadSheet(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}
	defer f.Close()

	return readSheet(f, sheet, 0)
}

// ReadAll reads every sheet of the workbook in full. Used for table
// registration, which needs every row of every sheet; a sheet that
// cannot be read aborts the whole read.
func ReadAll(path string) ([]*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	tables := make([]*Table, 0, len(sheets))
	for _, sheet := range sheets {
		table, err := readSheet(f, sheet, 0)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// readSheet reads up to maxRows data rows from a sheet (0 = all rows).
func readSheet(f *excelize.File, sheet string, maxRows int) (*Table, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{Sheet: sheet}, nil
	}

	columns := headerNames(rows[0])
	table := &Table{Sheet: sheet, Columns: columns}

	for _, raw := range rows[1:] {
		if maxRows > 0 && len(table.Rows) >= maxRows {
			break
		}
		row := make([]any, len(columns))
		for i := range columns {
			if i < len(raw) {
				row[i] = NormalizeCell(raw[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// headerNames builds column names from the header row. Blank header
// cells get a positional fallback name; duplicate headers get a
// numeric suffix so registered tables stay queryable.
func headerNames(header []string) []string {
	columns := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		unique := name
		for n := 2; taken[unique]; n++ {
			unique = fmt.Sprintf("%s_%d", name, n)
		}
		taken[unique] = true
		columns[i] = unique
	}
	return columns
}

// NormalizeCell maps missing-value sentinels to nil and returns every
// other cell as its text form.
func NormalizeCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" || trimmed == "-" {
		return nil
	}
	switch strings.ToLower(trimmed) {
	case "nan", "null":
		return nil
	}
	return cell
}
