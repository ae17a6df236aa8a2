// Package pool narrows pgx's pool, connection and transaction into interfaces,
// so that repositories take any of them and tests can substitute them.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Queryer sends SQL. It is what *pgxpool.Conn and pgx.Tx have in common.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Begin starts a transaction (or a savepoint, on a Tx).
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a subset of pgx.Tx.
//
// pgx.Tx itself does not satisfy Tx since its Begin returns pgx.Tx.
// Get one from Pool.Begin or Conn.Begin.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a connection acquired from Pool. Release it after use.
type Conn interface {
	Queryer
	Begin

	Release()
}

// Pool is a subset of *pgxpool.Pool. Use Wrap to get one.
type Pool interface {
	Begin

	Acquire(ctx context.Context) (Conn, error)
	Close()
}

func Wrap(p *pgxpool.Pool) Pool {
	return &pgxPool{base: p}
}

// InTx runs f in a transaction begun on b.
//
// The transaction is committed when f returns nil, and rolled back otherwise.
func InTx(ctx context.Context, b Begin, f func(Tx) error) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func wrapTx(tx pgx.Tx, err error) (Tx, error) {
	if err != nil {
		return nil, err
	}
	return &pgxTx{base: tx}, nil
}

type pgxPool struct {
	base *pgxpool.Pool
}

func (p *pgxPool) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(p.base.Begin(ctx))
}

func (p *pgxPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.base.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxPoolConn{base: c}, nil
}

func (p *pgxPool) Close() {
	p.base.Close()
}

type pgxPoolConn struct {
	base *pgxpool.Conn
}

func (c *pgxPoolConn) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(c.base.Begin(ctx))
}

func (c *pgxPoolConn) Release() {
	c.base.Release()
}

func (c *pgxPoolConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.base.Exec(ctx, sql, args...)
}

func (c *pgxPoolConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.base.Query(ctx, sql, args...)
}

func (c *pgxPoolConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.base.QueryRow(ctx, sql, args...)
}

type pgxTx struct {
	base pgx.Tx
}

func (tx *pgxTx) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(tx.base.Begin(ctx))
}

func (tx *pgxTx) Commit(ctx context.Context) error {
	return tx.base.Commit(ctx)
}

func (tx *pgxTx) Rollback(ctx context.Context) error {
	return tx.base.Rollback(ctx)
}

func (tx *pgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.base.Exec(ctx, sql, args...)
}

func (tx *pgxTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.base.Query(ctx, sql, args...)
}

func (tx *pgxTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.base.QueryRow(ctx, sql, args...)
}
