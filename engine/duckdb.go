// Default engine backing: embedded DuckDB through database/sql.

package engine

import (
	"database/sql"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// OpenDuckDB returns an OpenFunc that opens a fresh in-memory DuckDB
// instance. Each workbook gets its own instance, so registered tables
// from different workbooks never collide.
func OpenDuckDB() OpenFunc {
	return func() (*sql.DB, error) {
		return sql.Open("duckdb", "")
	}
}
