package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jmoiron/sqlx"
)

const secondsPerDay = 24 * 60 * 60

// LeaseRepository is the lease history. Observations are keyed by
// (segment, ip address, hardware address); created_at is written once and
// updated_at on every observation.
type LeaseRepository interface {
	Upsert(ctx context.Context, segment string, lease domain.KeaLease) error
	UpsertAll(ctx context.Context, segment string, leases []domain.KeaLease) error
	Find(ctx context.Context, segment, ipAddress, hwAddress string) (domain.Lease, error)
	FindAll(ctx context.Context) ([]domain.Lease, error)
	FindBySegment(ctx context.Context, segment string) ([]domain.Lease, error)
	PruneExpired(ctx context.Context, olderThanDays int) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Option configures a lease repository
type Option func(*leaseRepositoryImpl)

// WithClock replaces time.Now as the source of created_at/updated_at and the
// pruning cutoff.
func WithClock(now func() time.Time) Option {
	return func(r *leaseRepositoryImpl) {
		r.now = now
	}
}

// leaseRepositoryImpl implements LeaseRepository on SQLite
type leaseRepositoryImpl struct {
	db    *sqlx.DB
	stmts *PreparedStatementCache
	now   func() time.Time

	// writes are serialized in-process so concurrent pollers queue here
	// instead of contending for the SQLite write lock
	mu sync.Mutex
}

// NewLeaseRepository creates a new lease repository on an already migrated database
func NewLeaseRepository(db *sql.DB, opts ...Option) LeaseRepository {
	r := &leaseRepositoryImpl{
		db:    sqlx.NewDb(db, "sqlite"),
		stmts: NewPreparedStatementCache(db),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const upsertLeaseQuery = `
	INSERT INTO leases (
		segment, ip_address, hw_address, hostname, subnet_id,
		valid_lft, cltt, state, fqdn_fwd, fqdn_rev, client_id,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(segment, ip_address, hw_address) DO UPDATE SET
		hostname = excluded.hostname,
		subnet_id = excluded.subnet_id,
		valid_lft = excluded.valid_lft,
		cltt = excluded.cltt,
		state = excluded.state,
		fqdn_fwd = excluded.fqdn_fwd,
		fqdn_rev = excluded.fqdn_rev,
		client_id = excluded.client_id,
		updated_at = excluded.updated_at`

const selectLeaseColumns = `
	SELECT id, segment, ip_address, hw_address, COALESCE(hostname, '') AS hostname,
		subnet_id, valid_lft, cltt, state, fqdn_fwd, fqdn_rev,
		COALESCE(client_id, '') AS client_id, created_at, updated_at
	FROM leases`

// Upsert records one observation of a lease on a segment
func (r *leaseRepositoryImpl) Upsert(ctx context.Context, segment string, lease domain.KeaLease) error {
	if err := validateLease(segment, lease); err != nil {
		return err
	}

	stmt, err := r.stmts.Get(ctx, upsertLeaseQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare lease upsert: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := stmt.ExecContext(ctx, upsertArgs(segment, lease, r.now().Unix())...); err != nil {
		return fmt.Errorf("failed to upsert lease %s/%s: %w", segment, lease.IPAddress, err)
	}
	return nil
}

// UpsertAll records a whole poll result for a segment in one transaction.
// Every lease in the batch shares the same updated_at.
func (r *leaseRepositoryImpl) UpsertAll(ctx context.Context, segment string, leases []domain.KeaLease) error {
	if len(leases) == 0 {
		return nil
	}
	for _, lease := range leases {
		if err := validateLease(segment, lease); err != nil {
			return err
		}
	}

	stmt, err := r.stmts.Get(ctx, upsertLeaseQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare lease upsert: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lease transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("failed to roll back lease transaction: %v", rbErr)
		}
	}()

	txStmt := tx.StmtContext(ctx, stmt)
	now := r.now().Unix()
	for _, lease := range leases {
		if _, err := txStmt.ExecContext(ctx, upsertArgs(segment, lease, now)...); err != nil {
			return fmt.Errorf("failed to upsert lease %s/%s: %w", segment, lease.IPAddress, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leases for segment %s: %w", segment, err)
	}
	return nil
}

// Find returns a single lease by its identity key
func (r *leaseRepositoryImpl) Find(ctx context.Context, segment, ipAddress, hwAddress string) (domain.Lease, error) {
	var lease domain.Lease
	query := selectLeaseColumns + ` WHERE segment = ? AND ip_address = ? AND hw_address = ?`
	if err := r.db.GetContext(ctx, &lease, query, segment, ipAddress, hwAddress); err != nil {
		if isNotFoundError(err) {
			return domain.Lease{}, ErrNotFound
		}
		return domain.Lease{}, fmt.Errorf("failed to find lease: %w", err)
	}
	return lease, nil
}

// FindAll returns every stored lease, newest first
func (r *leaseRepositoryImpl) FindAll(ctx context.Context) ([]domain.Lease, error) {
	leases := []domain.Lease{}
	query := selectLeaseColumns + ` ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &leases, query); err != nil {
		return nil, fmt.Errorf("failed to find leases: %w", err)
	}
	return leases, nil
}

// FindBySegment returns the stored leases of one segment, newest first
func (r *leaseRepositoryImpl) FindBySegment(ctx context.Context, segment string) ([]domain.Lease, error) {
	leases := []domain.Lease{}
	query := selectLeaseColumns + ` WHERE segment = ? ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &leases, query, segment); err != nil {
		return nil, fmt.Errorf("failed to find leases for segment %s: %w", segment, err)
	}
	return leases, nil
}

// PruneExpired deletes leases that have not been observed for olderThanDays
// and whose own expiry (cltt + valid_lft) has passed. Both must hold.
func (r *leaseRepositoryImpl) PruneExpired(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("%w: olderThanDays must not be negative", ErrInvalidEntity)
	}

	stmt, err := r.stmts.Get(ctx, `DELETE FROM leases WHERE updated_at < ? AND (cltt + valid_lft) < ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare lease prune: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().Unix()
	cutoff := now - int64(olderThanDays)*secondsPerDay

	result, err := stmt.ExecContext(ctx, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune leases: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}

// Count returns the number of stored leases
func (r *leaseRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM leases`); err != nil {
		return 0, fmt.Errorf("failed to count leases: %w", err)
	}
	return count, nil
}

// Close releases the cached statements; the database handle stays open
func (r *leaseRepositoryImpl) Close() error {
	return r.stmts.Close()
}

func validateLease(segment string, lease domain.KeaLease) error {
	if segment == "" {
		return fmt.Errorf("%w: segment is required", ErrInvalidEntity)
	}
	if lease.IPAddress == "" {
		return fmt.Errorf("%w: ip-address is required", ErrInvalidEntity)
	}
	return nil
}

func upsertArgs(segment string, lease domain.KeaLease, now int64) []any {
	return []any{
		segment,
		lease.IPAddress,
		lease.HWAddress,
		nullString(lease.Hostname),
		lease.SubnetID,
		lease.ValidLft,
		lease.Cltt,
		lease.State,
		boolToInt(lease.FqdnFwd),
		boolToInt(lease.FqdnRev),
		nullString(lease.ClientID),
		now,
		now,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
