// Sheet-name sanitization for table registration.
//
// Information Hiding:
// - Sanitization rules hidden behind Sanitize
// - Collision handling hidden behind TableNames

package workbook

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nonWordRuns    = regexp.MustCompile(`\W+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// Sanitize converts a sheet name to a valid engine table name: runs of
// non-word characters collapse to a single underscore, leading and
// trailing underscores are trimmed, and the result is lowercased.
// Sanitize is deterministic and idempotent.
func Sanitize(name string) string {
	s := nonWordRuns.ReplaceAllString(strings.TrimSpace(name), "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// TableNames maps each sheet name to a unique sanitized table name.
// Two sheets that sanitize to the same name are disambiguated by a
// numeric suffix (_2, _3, ...) in sheet order, so the mapping is stable
// for a given workbook. A sheet whose name sanitizes to the empty string
// gets the base name "sheet".
func TableNames(sheets []string) map[string]string {
	names := make(map[string]string, len(sheets))
	taken := make(map[string]bool, len(sheets))

	for _, sheet := range sheets {
		base := Sanitize(sheet)
		if base == "" {
			base = "sheet"
		}
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		names[sheet] = name
	}
	return names
}

// QuoteIdent wraps an identifier in double quotes for use in a query,
// escaping embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
