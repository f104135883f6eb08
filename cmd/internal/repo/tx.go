package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// TxFrom returns the transaction bound to ctx, if any.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Q returns the in-flight transaction from ctx when present, else the pool.
// Stores route every statement through this so they transparently join an
// enclosing ExecuteInTransaction scope.
func Q(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return pool
}

// ExecuteInTransaction runs fn inside a database transaction.
//
// The transaction is carried in the context passed to fn; a nested call
// observes the outer transaction and collapses into it (depth-one
// re-entrancy), leaving commit/rollback to the outermost caller.
// fn returning an error rolls the transaction back.
func ExecuteInTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Attempt runs fn inside a savepoint when a transaction is in flight, so a
// failing statement does not poison the enclosing transaction. Outside a
// transaction it just runs fn.
//
// The batch pipeline uses this per item: a rejected row rolls back to the
// savepoint while the committed work of earlier items survives.
func Attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := TxFrom(ctx)
	if !ok {
		return fn(ctx)
	}

	sp, err := tx.Begin(ctx) // SAVEPOINT
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, sp)); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}
