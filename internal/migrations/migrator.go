package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
)

// Migration represents a versioned schema change. Up and Down run inside the
// transaction that records the version, so a failed step leaves no trace.
type Migration struct {
	Version int64
	Name    string
	Up      func(*sql.Tx) error
	Down    func(*sql.Tx) error
}

// Migrator applies migrations in version order and tracks them in schema_migrations
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: []Migration{},
	}
}

// AddMigration registers a migration, keeping the list sorted by version
func (m *Migrator) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// RunMigrations applies every migration newer than the recorded version
func (m *Migrator) RunMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if err := m.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		log.Printf("applied migration %d (%s)", migration.Version, migration.Name)
	}

	return nil
}

// Rollback reverts the most recently applied migration, if any
func (m *Migrator) Rollback(ctx context.Context) error {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return nil
	}

	for _, migration := range m.migrations {
		if migration.Version != currentVersion {
			continue
		}
		if migration.Down == nil {
			return fmt.Errorf("migration %d (%s) has no down step", migration.Version, migration.Name)
		}
		return m.inTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Down(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version)
			return err
		})
	}

	return fmt.Errorf("migration %d is not registered", currentVersion)
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *Migrator) runMigration(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if migration.Up != nil {
			if err := migration.Up(tx); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name)
		return err
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("failed to roll back migration transaction: %v", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCurrentVersion returns the highest applied migration version, 0 when none
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// GetMigrations returns all registered migrations
func (m *Migrator) GetMigrations() []Migration {
	return m.migrations
}

// Apply registers the lease schema migrations on a new migrator and runs them.
func Apply(ctx context.Context, db *sql.DB) error {
	migrator := NewMigrator(db)
	for _, migration := range GetLeaseMigrations() {
		migrator.AddMigration(migration)
	}
	return migrator.RunMigrations(ctx)
}
