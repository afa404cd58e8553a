// Package sqlite provides the SQLite-backed implementation of the local
// store. The driver is pure Go, so the engine builds without CGO on every
// device target.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx, letting the same
// statement code run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore implements store.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
}

// Options tunes the underlying connection.
type Options struct {
	BusyTimeout time.Duration
}

// New creates a new SQLiteStore at the given database path. Parent
// directories are created and the schema is applied automatically.
// Use ":memory:" for an ephemeral store in tests.
func New(dbPath string, opts ...Options) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps the in-memory database alive and sidesteps
	// SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	busyTimeout := 5 * time.Second
	if len(opts) > 0 && opts[0].BusyTimeout > 0 {
		busyTimeout = opts[0].BusyTimeout
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.q = db
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Groups() store.GroupStore           { return &groupStore{q: s.q} }
func (s *SQLiteStore) Members() store.MemberStore         { return &memberStore{q: s.q} }
func (s *SQLiteStore) Expenses() store.ExpenseStore       { return &expenseStore{q: s.q} }
func (s *SQLiteStore) Shares() store.ShareStore           { return &shareStore{q: s.q} }
func (s *SQLiteStore) Settlements() store.SettlementStore { return &settlementStore{q: s.q} }
func (s *SQLiteStore) Outbox() store.OutboxStore          { return &outboxStore{q: s.q} }

// RunInTx runs fn against a transaction-scoped view of the store. The
// transaction commits iff fn returns nil. Nested calls reuse the ambient
// transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	if _, alreadyInTx := s.q.(*sql.Tx); alreadyInTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	txStore := &SQLiteStore{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Timestamps are persisted as RFC3339Nano strings; reads go through
// types.CoerceTimestamp so older rows with epoch-millis survive.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return types.CoerceTimestamp(s)
}

func encodeNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	ts, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
