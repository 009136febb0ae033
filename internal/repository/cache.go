package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// PreparedStatementCache holds the lease repository's statements, prepared
// lazily on the first query that needs them and shared by every caller.
type PreparedStatementCache struct {
	db *sql.DB

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

// NewPreparedStatementCache creates an empty cache bound to db
func NewPreparedStatementCache(db *sql.DB) *PreparedStatementCache {
	return &PreparedStatementCache{db: db, stmts: map[string]*sql.Stmt{}}
}

// Get returns the statement for query. A failed prepare is not cached, so the
// next call tries again.
func (c *PreparedStatementCache) Get(ctx context.Context, query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stmt, ok := c.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	c.stmts[query] = stmt
	return stmt, nil
}

// Close closes and forgets every statement
func (c *PreparedStatementCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, stmt := range c.stmts {
		errs = append(errs, stmt.Close())
	}
	clear(c.stmts)
	return errors.Join(errs...)
}

// Size returns the number of prepared statements
func (c *PreparedStatementCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}
