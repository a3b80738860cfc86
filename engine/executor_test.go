package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xuri/excelize/v2"
)

// sqliteOpener backs tests with in-memory SQLite so they exercise the
// cache and executor without an embedded analytical engine. The single
// connection limit keeps every statement on the same in-memory
// database.
func sqliteOpener(calls *int) OpenFunc {
	return func() (*sql.DB, error) {
		if calls != nil {
			*calls++
		}
		db, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
}

func writeSalesWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet("Sales Data"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	rows := [][]any{
		{"Region", "Revenue"},
		{"East", "1,200"},
		{"West", "-"},
		{"North", ""},
		{"South", "450"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		if err := f.SetSheetRow("Sales Data", cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("DeleteSheet failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return path
}

func TestExecuteRegistersAndSums(t *testing.T) {
	path := writeSalesWorkbook(t)
	cache := NewCache(sqliteOpener(nil), nil)
	exec := NewExecutor(cache, nil)

	query := "SELECT SUM(CAST(REPLACE(\"Revenue\", ',', '') AS REAL)) AS total FROM sales_data"
	res, err := exec.Execute(context.Background(), path, query)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Shape != [2]int{1, 1} {
		t.Errorf("expected shape [1 1], got %v", res.Shape)
	}
	if len(res.Columns) != 1 || res.Columns[0] != "total" {
		t.Errorf("expected columns [total], got %v", res.Columns)
	}
	total, ok := res.Rows[0]["total"].(float64)
	if !ok {
		t.Fatalf("expected float64 total, got %T", res.Rows[0]["total"])
	}
	// "-" and "" become NULL and are excluded from the sum.
	if total != 1650 {
		t.Errorf("expected total 1650, got %v", total)
	}
}

func TestCachedConnectionReused(t *testing.T) {
	path := writeSalesWorkbook(t)
	opens := 0
	cache := NewCache(sqliteOpener(&opens), nil)
	exec := NewExecutor(cache, nil)

	for i := 0; i < 2; i++ {
		if _, err := exec.Execute(context.Background(), path, "SELECT COUNT(*) AS n FROM sales_data"); err != nil {
			t.Fatalf("Execute %d failed: %v", i+1, err)
		}
	}

	if opens != 1 {
		t.Errorf("expected 1 connection open across repeated queries, got %d", opens)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached connection, got %d", cache.Len())
	}
}

func TestConcurrentFirstTouchRegistersOnce(t *testing.T) {
	path := writeSalesWorkbook(t)
	opens := 0
	cache := NewCache(sqliteOpener(&opens), nil)
	exec := NewExecutor(cache, nil)

	query := "SELECT SUM(CAST(REPLACE(\"Revenue\", ',', '') AS REAL)) AS total FROM sales_data"

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := exec.Execute(context.Background(), path, query)
			if err != nil {
				t.Errorf("Execute failed: %v", err)
				return
			}
			if total, ok := res.Rows[0]["total"].(float64); !ok || total != 1650 {
				t.Errorf("expected total 1650, got %v", res.Rows[0]["total"])
			}
		}()
	}
	wg.Wait()

	if opens != 1 {
		t.Errorf("expected 1 connection open across concurrent first queries, got %d", opens)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached connection, got %d", cache.Len())
	}
}

func TestRegistrationRecordsAliases(t *testing.T) {
	path := writeSalesWorkbook(t)
	cache := NewCache(sqliteOpener(nil), nil)
	exec := NewExecutor(cache, nil)

	if _, err := exec.Execute(context.Background(), path, "SELECT 1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	record := cache.Lookup(path)
	if record == nil {
		t.Fatal("expected registration record after first query")
	}
	aliases, ok := record["Sales Data"]
	if !ok {
		t.Fatalf("expected record for sheet, got %v", record)
	}
	if aliases.Sanitized != "sales_data" {
		t.Errorf("expected sanitized name sales_data, got %q", aliases.Sanitized)
	}
	want := map[string]bool{"sales_data": false, "Sales Data": false, "`Sales Data`": false}
	for _, name := range aliases.RegisteredAs {
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected sheet registered as %q, got %v", name, aliases.RegisteredAs)
		}
	}

	// The raw sheet name works as a quoted identifier through its view.
	res, err := exec.Execute(context.Background(), path, `SELECT COUNT(*) AS n FROM "Sales Data"`)
	if err != nil {
		t.Fatalf("query via alias failed: %v", err)
	}
	if n, ok := res.Rows[0]["n"].(int64); !ok || n != 4 {
		t.Errorf("expected 4 rows via alias, got %v", res.Rows[0]["n"])
	}
}

func TestEmptyResultShape(t *testing.T) {
	path := writeSalesWorkbook(t)
	cache := NewCache(sqliteOpener(nil), nil)
	exec := NewExecutor(cache, nil)

	res, err := exec.Execute(context.Background(), path, "SELECT * FROM sales_data WHERE 1 = 0")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Columns == nil || len(res.Columns) != 0 {
		t.Errorf("expected empty columns, got %v", res.Columns)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Errorf("expected empty rows, got %v", res.Rows)
	}
	if res.Shape != [2]int{0, 0} {
		t.Errorf("expected shape [0 0], got %v", res.Shape)
	}
}

func TestStaleConnectionRetriedOnce(t *testing.T) {
	path := writeSalesWorkbook(t)
	opens := 0
	cache := NewCache(sqliteOpener(&opens), nil)
	exec := NewExecutor(cache, nil)

	if _, err := exec.Execute(context.Background(), path, "SELECT COUNT(*) AS n FROM sales_data"); err != nil {
		t.Fatalf("initial Execute failed: %v", err)
	}

	// Close the cached database behind the cache's back so the next
	// query fails with a closed-connection error.
	cache.mu.Lock()
	_ = cache.conns[path].db.Close()
	cache.mu.Unlock()

	res, err := exec.Execute(context.Background(), path, "SELECT COUNT(*) AS n FROM sales_data")
	if err != nil {
		t.Fatalf("Execute after close failed: %v", err)
	}
	if n, ok := res.Rows[0]["n"].(int64); !ok || n != 4 {
		t.Errorf("expected 4 rows after recovery, got %v", res.Rows[0]["n"])
	}
	if opens != 2 {
		t.Errorf("expected exactly one reopen, got %d opens", opens)
	}
}

func TestStaleRetryHappensExactlyOnce(t *testing.T) {
	path := writeSalesWorkbook(t)
	opens := 0
	inner := sqliteOpener(&opens)
	open := func() (*sql.DB, error) {
		db, err := inner()
		if err != nil {
			return nil, err
		}
		// Every connection after the first is dead on arrival.
		if opens > 1 {
			_ = db.Close()
		}
		return db, nil
	}
	cache := NewCache(open, nil)
	exec := NewExecutor(cache, nil)

	if _, err := exec.Execute(context.Background(), path, "SELECT COUNT(*) AS n FROM sales_data"); err != nil {
		t.Fatalf("initial Execute failed: %v", err)
	}
	cache.mu.Lock()
	_ = cache.conns[path].db.Close()
	cache.mu.Unlock()

	_, err := exec.Execute(context.Background(), path, "SELECT COUNT(*) AS n FROM sales_data")
	if err == nil {
		t.Fatal("expected failure when the replacement connection is also dead")
	}
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T: %v", err, err)
	}
	if opens != 2 {
		t.Errorf("expected a single retry open, got %d opens", opens)
	}
}

func TestMissingWorkbookIsIngestionFailure(t *testing.T) {
	cache := NewCache(sqliteOpener(nil), nil)
	exec := NewExecutor(cache, nil)

	_, err := exec.Execute(context.Background(), "/nonexistent/book.xlsx", "SELECT 1")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T: %v", err, err)
	}
	if qe.Kind != KindIngestion {
		t.Errorf("expected ingestion kind, got %v", qe.Kind)
	}
	if cache.Len() != 0 {
		t.Errorf("expected failed registration to leave no cached connection, got %d", cache.Len())
	}
}

func TestExecutionErrorIsGeneric(t *testing.T) {
	path := writeSalesWorkbook(t)
	cache := NewCache(sqliteOpener(nil), nil)
	exec := NewExecutor(cache, nil)

	_, err := exec.Execute(context.Background(), path, "SELEC nonsense FROM nowhere")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T: %v", err, err)
	}
	if qe.Kind != KindExecution {
		t.Errorf("expected execution kind, got %v", qe.Kind)
	}
	if got := qe.Error(); got != "query could not be executed against the workbook" {
		t.Errorf("expected generic message, got %q", got)
	}
}
