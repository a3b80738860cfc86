// Bounded workbook previews.
//
// A preview is a small schema+sample snapshot used to ground the
// reasoning engine before it writes a query: sheet list, columns,
// up to three sample rows per sheet, and the table names each sheet
// will be registered under. Previews are regenerated on every request.

package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// sampleRowLimit bounds how many data rows a preview reads per sheet.
const sampleRowLimit = 3

// TableAliases records how a sheet will be addressable in queries.
type TableAliases struct {
	Sanitized      string `json:"sanitized"`
	QuotedOriginal string `json:"quoted_original"`
}

// SheetPreview is the schema+sample snapshot of one sheet.
// A sheet that failed to read carries only Error.
type SheetPreview struct {
	Columns        []string          `json:"columns,omitempty"`
	DTypes         map[string]string `json:"dtypes,omitempty"`
	SampleRows     []map[string]any  `json:"sample_rows,omitempty"`
	Shape          [2]int            `json:"shape"`
	TableSanitized string            `json:"table_name_sanitized,omitempty"`
	TableQuoted    string            `json:"table_name_quoted,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Preview is the schema+sample snapshot of a whole workbook.
type Preview struct {
	FileName        string                   `json:"file_name"`
	AvailableSheets []string                 `json:"available_sheets"`
	TableNames      map[string]TableAliases  `json:"registered_table_names"`
	Sheets          map[string]*SheetPreview `json:"sheets_data"`
}

// Read builds a preview of the workbook at path. An absent file or a
// workbook with zero sheets is fatal; a read failure on a single sheet
// is recorded in that sheet's entry and does not abort the others.
func Read(path string) (*Preview, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	names := TableNames(sheets)
	preview := &Preview{
		FileName:        path,
		AvailableSheets: sheets,
		TableNames:      make(map[string]TableAliases, len(sheets)),
		Sheets:          make(map[string]*SheetPreview, len(sheets)),
	}

	for _, sheet := range sheets {
		preview.TableNames[sheet] = TableAliases{
			Sanitized:      names[sheet],
			QuotedOriginal: QuoteIdent(sheet),
		}

		table, err := readSheet(f, sheet, sampleRowLimit)
		if err != nil {
			preview.Sheets[sheet] = &SheetPreview{Error: err.Error()}
			continue
		}

		sp := &SheetPreview{
			Columns:        table.Columns,
			DTypes:         make(map[string]string, len(table.Columns)),
			Shape:          table.Shape(),
			TableSanitized: names[sheet],
			TableQuoted:    QuoteIdent(sheet),
		}
		for _, col := range table.Columns {
			sp.DTypes[col] = "text"
		}
		for _, row := range table.Rows {
			sample := make(map[string]any, len(table.Columns))
			for i, col := range table.Columns {
				sample[col] = row[i]
			}
			sp.SampleRows = append(sp.SampleRows, sample)
		}
		preview.Sheets[sheet] = sp
	}

	return preview, nil
}
