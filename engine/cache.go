// Package engine executes structured queries against an embedded
// analytical engine with per-workbook connection caching.
//
// Registering a workbook's sheets as queryable tables reads every row
// of every sheet, which is expensive. The cache amortizes that cost
// across repeated questions against the same workbook within a process
// lifetime; workbook files are treated as immutable per session, so
// staleness against a changed file is an accepted trade-off.
//
// Information Hiding:
// - Connection lifecycle and locking hidden
// - Registration bookkeeping hidden

package engine

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
)

// OpenFunc opens a fresh connection to the embedded engine.
type OpenFunc func() (*sql.DB, error)

// Aliases records the names one sheet was registered under.
type Aliases struct {
	Sanitized    string   `json:"sanitized"`
	Original     string   `json:"original"`
	RegisteredAs []string `json:"available_as"`
}

// Conn is one cached engine connection and its registration record.
// Queries against a connection are serialized through mu: a connection
// is not assumed safe for concurrent statements from two invocations.
type Conn struct {
	db         *sql.DB
	mu         sync.Mutex
	registered map[string]Aliases // sheet name -> aliases; nil until registered
}

// Registration returns the registration record, or nil if the
// workbook's sheets have not been registered on this connection yet.
func (c *Conn) Registration() map[string]Aliases {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// Cache owns at most one live engine connection per workbook identity.
// All access to the map is serialized; it is shared process-wide across
// concurrent invocations.
type Cache struct {
	mu     sync.Mutex
	conns  map[string]*Conn
	open   OpenFunc
	logger *log.Logger
}

// NewCache creates a cache that opens connections with open.
// A nil logger discards operator output.
func NewCache(open OpenFunc, logger *log.Logger) *Cache {
	if logger == nil {
		logger = discardLogger()
	}
	return &Cache{
		conns:  make(map[string]*Conn),
		open:   open,
		logger: logger,
	}
}

// Acquire returns the cached connection for a workbook, opening one if
// none is cached. needsRegistration is true until a registration record
// is present on the connection; an unregistered connection is returned
// as-is, never replaced, so a concurrent invocation mid-registration
// keeps its handle. The registration record is read after the cache
// lock is released: conn.mu is never taken under c.mu.
func (c *Cache) Acquire(file string) (*Conn, bool, error) {
	c.mu.Lock()
	conn, ok := c.conns[file]
	if !ok {
		c.logger.Printf("engine: opening new connection for %s", file)
		db, err := c.open()
		if err != nil {
			c.mu.Unlock()
			return nil, false, fmt.Errorf("failed to open engine connection: %w", err)
		}
		conn = &Conn{db: db}
		c.conns[file] = conn
		c.mu.Unlock()
		return conn, true, nil
	}
	c.mu.Unlock()

	if conn.Registration() == nil {
		return conn, true, nil
	}
	c.logger.Printf("engine: reusing cached connection for %s", file)
	return conn, false, nil
}

// Lookup returns the registration record for a workbook without
// opening a connection, or nil if none is cached or registration has
// not completed.
func (c *Cache) Lookup(file string) map[string]Aliases {
	c.mu.Lock()
	conn, ok := c.conns[file]
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return conn.Registration()
}

// Invalidate closes and removes the connection and registration record
// for one workbook. Unknown workbooks are a no-op.
func (c *Cache) Invalidate(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[file]; ok {
		_ = conn.db.Close()
		delete(c.conns, file)
		c.logger.Printf("engine: cleared cache for %s", file)
	}
}

// InvalidateAll tears down every cached workbook.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for file, conn := range c.conns {
		_ = conn.db.Close()
		delete(c.conns, file)
	}
	c.logger.Printf("engine: cleared all cached connections")
}

// Len reports how many workbooks currently hold a cached connection.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}
