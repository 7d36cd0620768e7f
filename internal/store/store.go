// Package store provides the embedded, tenant-isolated analytical store
// that backs the graph, governance, approval and scheduler subsystems. It is
// a single sqlite3 file rather than a client/server database: every table
// the control plane needs lives in the same file, opened once at boot.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so store-layer code can run
// either against the pooled connection or inside a caller-supplied
// transaction without duplicating queries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the embedded database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if absent) the embedded database file at path and
// configures it for single-writer embedded use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", path, err)
	}

	// The analytical sqlite3 store has a single writer; a pool larger than
	// one connection only invites "database is locked" errors between
	// concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging store %q: %w", path, err)
	}

	return &Store{DB: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error returned by fn or by the commit itself. Used by every
// operation in this module that must be all-or-nothing (spec.md §5).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
