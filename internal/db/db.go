// Package db provides the shared DBTX abstraction that every store in this
// repository depends on instead of a concrete pool or transaction type. It
// lets handlers pass either a *pgxpool.Pool (most requests) or an open
// pgx.Tx (multi-step transactions, e.g. command enqueue or agent
// registration) to the same store constructors.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BeginTx is satisfied by *pgxpool.Pool (and *pgxpool.Conn), letting
// components open a transaction without depending on pgxpool directly.
type BeginTx interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is the full surface a service needs from its database handle: direct
// queries via DBTX plus transaction scopes via BeginTx. Services declare
// their pool field as this interface, not the concrete *pgxpool.Pool, so
// tests can drive store/service logic with a fake implementation.
type Pool interface {
	DBTX
	BeginTx
}

// WithTx runs fn inside a transaction opened on beginner, committing on
// success and rolling back on error or panic. beginner is the narrow
// BeginTx interface rather than a concrete *pgxpool.Pool so store/service
// tests can drive it with a fake transaction source.
func WithTx(ctx context.Context, beginner BeginTx, fn func(tx pgx.Tx) error) (err error) {
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}

// IsNoRows reports whether err is, or wraps, pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
