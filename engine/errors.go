// Error classification for query execution.
//
// Raw engine diagnostics must never reach user-facing text: they are
// written to the operator log, and callers receive a QueryError whose
// message is generic per failure kind.

package engine

import (
	"io"
	"log"
	"strings"
)

// Kind classifies a query failure.
type Kind int

const (
	// KindIngestion covers workbook read failures during registration.
	KindIngestion Kind = iota
	// KindExecution covers queries the engine rejected or failed to run.
	KindExecution
	// KindConnection covers failures opening an engine connection.
	KindConnection
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindIngestion:
		return "ingestion"
	case KindExecution:
		return "execution"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// QueryError is the classified, user-safe form of a failure. The
// underlying diagnostic is logged where the error is created and is
// deliberately not carried here.
type QueryError struct {
	Kind Kind
}

// Error returns a generic message for the failure kind.
func (e *QueryError) Error() string {
	switch e.Kind {
	case KindIngestion:
		return "failed to read the workbook for analysis"
	case KindConnection:
		return "failed to reach the analytical engine"
	default:
		return "query could not be executed against the workbook"
	}
}

// isStale reports whether an execution error indicates a closed or
// otherwise invalid cached connection, which is recoverable by
// invalidating the cache entry and retrying once.
func isStale(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "closed") || strings.Contains(msg, "connection")
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
