package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const TxKey contextKey = "db_tx"

// Transactor is implemented by TxRunner. Services depend on it so tests can
// substitute a pass-through.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner runs a function inside a single database transaction. Repositories
// pick the transaction up from the context through TxFromContext, so a service
// can compose several repository calls into one unit of work.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx begins a transaction, stores it on the context passed to fn and
// commits when fn returns nil. Any error from fn rolls the transaction back.
// Nested calls reuse the outer transaction.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ Transactor = (*TxRunner)(nil)

// ContextWithTx returns a copy of ctx carrying tx.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, TxKey, tx)
}

// TxFromContext retrieves the transaction started by WithinTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}
