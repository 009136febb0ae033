package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jbweber/homelab/lookingglass/internal/migrations"
	_ "modernc.org/sqlite"
)

// NewTestDSN names a shared in-memory SQLite database after a test. Subtest
// separators are flattened so the name stays a single path element.
func NewTestDSN(testName string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(testName)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// CleanupTestDB removes the file behind a file-backed test DSN. In-memory
// DSNs (mode=memory) have no file and are left alone.
func CleanupTestDB(dsn string) error {
	path, ok := strings.CutPrefix(dsn, "file:")
	if !ok {
		return fmt.Errorf("invalid DSN format")
	}

	path, query, _ := strings.Cut(path, "?")
	if strings.Contains(query, "mode=memory") {
		return nil
	}

	return os.Remove(path)
}

// SetupTestDB creates and returns a test database connection.
// The pool is pinned to one connection so the shared in-memory database
// lives exactly as long as the handle.
func SetupTestDB(t *testing.T, testName string) (*sql.DB, func()) {
	t.Helper()
	dsn := NewTestDSN(testName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

// SetupTestDBWithMigrations is SetupTestDB with the lease schema applied
func SetupTestDBWithMigrations(t *testing.T, testName string) (*sql.DB, func()) {
	t.Helper()
	db, cleanup := SetupTestDB(t, testName)

	if err := migrations.Apply(context.Background(), db); err != nil {
		cleanup()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db, cleanup
}
