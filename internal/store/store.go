// Package store is the Postgres-backed persistence layer for the
// intelligence tracking engine. It wraps pkg/database.DB with one
// method group per entity from the data model; the Reconciliation
// Engine drives its per-actor commit through WithTx.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/encasitacov19/CTI-PLATFORM/pkg/database"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// entity method run either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the single persistence gateway for the platform. Its entity
// methods read through whichever querier q currently points at: the
// pooled *sql.DB for standalone calls, or a live *sql.Tx while inside
// WithTx.
type Store struct {
	db *database.DB
	q  querier
}

// New wraps an established database connection.
func New(db *database.DB) *Store {
	return &Store{db: db, q: db.DB}
}

// WithTx runs fn against a Store bound to a single transaction,
// committing on success and rolling back on error or panic. The
// Reconciliation Engine uses this to satisfy spec.md's "commit as a
// single transaction" requirement per actor: observers never see a
// partially updated state for that actor.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
