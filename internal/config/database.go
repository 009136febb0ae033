package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// busyTimeout is how long a connection waits on a locked database before
// failing with SQLITE_BUSY
const busyTimeout = 5 * time.Second

// dsn adds the per-connection pragmas to a modernc.org/sqlite file path.
// They are applied on every new pool connection.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)", path, busyTimeout.Milliseconds())
}

// Pool sizing for the lease store. One writer at a time is enforced by the
// repository, so extra connections only serve concurrent API reads.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = time.Minute
)

// OptimizeDatabaseConnection sizes the connection pool of the lease store
func OptimizeDatabaseConnection(db *sql.DB) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

// ApplyPragmaOptimizations applies SQLite pragmas that persist in the
// database file or only need to run once
func ApplyPragmaOptimizations(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL", // readers never block the poller's writes
		"PRAGMA optimize",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	return nil
}
