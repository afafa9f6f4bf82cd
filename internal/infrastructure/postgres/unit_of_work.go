package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTransaction is returned by Commit when ctx carries no transaction.
var ErrNoTransaction = errors.New("no transaction in context")

// txKey is the context key for storing transaction.
type txKey struct{}

// UnitOfWork implements application.UnitOfWork using pgx transactions.
// provides transaction boundaries without leaking pgx types to application layer.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a new UnitOfWork.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Begin starts a read-committed transaction and stores it in context.
// a context that already carries a transaction is returned unchanged, so
// nested RunInTransaction calls join the outer one.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if InTransaction(ctx) {
		return context.WithValue(ctx, txKey{}, nestedTx{ctx.Value(txKey{}).(pgx.Tx)}), nil
	}
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// Commit commits the transaction stored in context.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	switch tx := ctx.Value(txKey{}).(type) {
	case nestedTx:
		return nil // the outer unit commits
	case pgx.Tx:
		return tx.Commit(ctx)
	default:
		return ErrNoTransaction
	}
}

// Rollback rolls back the transaction stored in context.
// safe to call after commit (will return nil).
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	switch tx := ctx.Value(txKey{}).(type) {
	case nestedTx:
		return nil
	case pgx.Tx:
		// pgx returns ErrTxClosed if already committed/rolled back
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return err
		}
		return nil
	default:
		return nil // no transaction, nothing to rollback
	}
}

// nestedTx marks a transaction joined from an outer unit of work.
type nestedTx struct {
	pgx.Tx
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// Querier is an interface that both pgxpool.Pool and pgx.Tx satisfy.
// allows repositories to work with either direct pool or transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the appropriate querier for the context.
// if a transaction exists in context, returns the transaction.
// otherwise returns the pool for direct queries.
func GetQuerier(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}
