// Query execution against registered workbook sheets.
//
// Information Hiding:
// - Sheet registration SQL hidden
// - Stale-connection recovery hidden
// - Row scanning and value normalization hidden

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/richinex/tabula/internal/jsonsafe"
	"github.com/richinex/tabula/workbook"
)

// Result is the JSON-ready outcome of a successful query.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Shape   [2]int           `json:"shape"`
}

// Executor runs SQL against workbooks, registering each workbook's
// sheets on first use and reusing the cached connection afterwards.
type Executor struct {
	cache        *Cache
	logger       *log.Logger
	queryTimeout time.Duration
}

// NewExecutor creates an executor over cache. A nil logger discards
// operator output.
func NewExecutor(cache *Cache, logger *log.Logger) *Executor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Executor{cache: cache, logger: logger}
}

// WithQueryTimeout bounds each query attempt. Zero means no bound
// beyond the caller's context.
func (e *Executor) WithQueryTimeout(d time.Duration) *Executor {
	e.queryTimeout = d
	return e
}

// kindError pairs a failure kind with its raw cause so the retry and
// classification paths can log the diagnostic before discarding it.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }

// staleError marks an execution failure attributable to an invalid
// cached connection.
type staleError struct {
	cause error
}

func (e *staleError) Error() string { return e.cause.Error() }

// Execute runs query against the workbook at file. The first query
// against a workbook registers every sheet as a table; later queries
// reuse the registered connection. A stale cached connection is
// invalidated and the query retried exactly once.
func (e *Executor) Execute(ctx context.Context, file, query string) (*Result, error) {
	res, err := e.attempt(ctx, file, query)
	if err == nil {
		return res, nil
	}

	var stale *staleError
	if errors.As(err, &stale) {
		e.logger.Printf("engine: stale connection for %s, retrying once: %v", file, stale.cause)
		e.cache.Invalidate(file)
		res, err = e.attempt(ctx, file, query)
		if err == nil {
			return res, nil
		}
	}

	return nil, e.classify(file, query, err)
}

func (e *Executor) attempt(ctx context.Context, file, query string) (*Result, error) {
	conn, needsRegistration, err := e.cache.Acquire(file)
	if err != nil {
		return nil, &kindError{kind: KindConnection, cause: err}
	}

	if needsRegistration {
		tables, err := workbook.ReadAll(file)
		if err != nil {
			e.cache.Invalidate(file)
			return nil, &kindError{kind: KindIngestion, cause: err}
		}
		if err := e.register(ctx, conn, file, tables); err != nil {
			e.cache.Invalidate(file)
			return nil, &kindError{kind: KindIngestion, cause: err}
		}
	}

	return e.runQuery(ctx, conn, query)
}

// register creates one table per sheet on conn and records the names
// each sheet answers to. Raw-name alias views are best effort; the
// sanitized table is authoritative.
func (e *Executor) register(ctx context.Context, conn *Conn, file string, tables []*workbook.Table) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	// A concurrent invocation may have registered the workbook between
	// Acquire and here.
	if conn.registered != nil {
		return nil
	}

	sheets := make([]string, len(tables))
	for i, t := range tables {
		sheets[i] = t.Sheet
	}
	names := workbook.TableNames(sheets)

	record := make(map[string]Aliases, len(tables))
	for _, t := range tables {
		name := names[t.Sheet]
		if len(t.Columns) == 0 {
			e.logger.Printf("engine: skipping empty sheet %q in %s", t.Sheet, file)
			record[t.Sheet] = Aliases{Sanitized: name, Original: t.Sheet}
			continue
		}
		if err := createTable(ctx, conn.db, name, t); err != nil {
			return fmt.Errorf("failed to register sheet %q: %w", t.Sheet, err)
		}

		registeredAs := []string{name}
		for _, alias := range []string{t.Sheet, "`" + t.Sheet + "`"} {
			if alias == name {
				continue
			}
			if err := createAliasView(ctx, conn.db, alias, name); err != nil {
				e.logger.Printf("engine: alias %q for sheet %q unavailable: %v", alias, t.Sheet, err)
				continue
			}
			registeredAs = append(registeredAs, alias)
		}
		record[t.Sheet] = Aliases{Sanitized: name, Original: t.Sheet, RegisteredAs: registeredAs}
		e.logger.Printf("engine: registered sheet %q as %v (%d rows)", t.Sheet, registeredAs, len(t.Rows))
	}

	conn.registered = record
	return nil
}

// createTable creates an all-text table for one sheet and loads its
// rows in a single transaction.
func createTable(ctx context.Context, db *sql.DB, name string, t *workbook.Table) error {
	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		defs[i] = workbook.QuoteIdent(col) + " VARCHAR"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", workbook.QuoteIdent(name), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return err
	}

	if len(t.Rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(t.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", workbook.QuoteIdent(name), strings.Join(placeholders, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}
	_ = stmt.Close()
	return tx.Commit()
}

// createAliasView exposes a registered table under an alternate name,
// so generated queries can reference the sheet as written.
func createAliasView(ctx context.Context, db *sql.DB, alias, table string) error {
	view := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s",
		workbook.QuoteIdent(alias), workbook.QuoteIdent(table))
	_, err := db.ExecContext(ctx, view)
	return err
}

// runQuery executes one query on conn and scans the result into
// JSON-ready rows.
func (e *Executor) runQuery(ctx context.Context, conn *Conn, query string) (*Result, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	rows, err := conn.db.QueryContext(ctx, query)
	if err != nil {
		if isStale(err) {
			return nil, &staleError{cause: err}
		}
		return nil, &kindError{kind: KindExecution, cause: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &kindError{kind: KindExecution, cause: err}
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &kindError{kind: KindExecution, cause: err}
		}
		jsonsafe.Values(values)
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		if isStale(err) {
			return nil, &staleError{cause: err}
		}
		return nil, &kindError{kind: KindExecution, cause: err}
	}

	if len(out) == 0 {
		return &Result{Columns: []string{}, Rows: []map[string]any{}}, nil
	}
	return &Result{Columns: columns, Rows: out, Shape: [2]int{len(out), len(columns)}}, nil
}

// classify logs the raw diagnostic and converts err into the generic
// QueryError callers are allowed to surface.
func (e *Executor) classify(file, query string, err error) *QueryError {
	kind := KindExecution
	var ke *kindError
	if errors.As(err, &ke) {
		kind = ke.kind
		err = ke.cause
	}
	var stale *staleError
	if errors.As(err, &stale) {
		err = stale.cause
	}
	e.logger.Printf("engine: %s failure for %s: %v (query: %s)", kind, file, err, query)
	return &QueryError{Kind: kind}
}
