package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLExecutor runs statements on the single borrowed connection. It carries
// no dialect logic.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) ([][]any, error)
}

// savepointExecutor is implemented by executors running inside a
// transaction. fn runs in a nested transaction so that a failed statement
// can be discarded without aborting the outer one.
type savepointExecutor interface {
	Savepoint(ctx context.Context, fn func(SQLExecutor) error) error
}

// pgxQuerier is satisfied by both *pgx.Conn and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgxExecutor struct {
	q pgxQuerier
}

func newPgxExecutor(q pgxQuerier) *pgxExecutor {
	return &pgxExecutor{q: q}
}

func (e *pgxExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.q.Exec(ctx, query, args...)
	return err
}

func (e *pgxExecutor) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := e.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// pgxTxExecutor runs everything inside one PostgreSQL transaction.
type pgxTxExecutor struct {
	pgxExecutor
	tx pgx.Tx
}

func newPgxTxExecutor(tx pgx.Tx) *pgxTxExecutor {
	return &pgxTxExecutor{pgxExecutor: pgxExecutor{q: tx}, tx: tx}
}

func (e *pgxTxExecutor) Savepoint(ctx context.Context, fn func(SQLExecutor) error) error {
	sp, err := e.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(newPgxExecutor(sp)); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback to savepoint also failed: %v", err, rbErr)
		}
		return err
	}
	return sp.Commit(ctx)
}

// sqlQuerier is satisfied by *sql.Conn, *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlConnExecutor struct {
	q sqlQuerier
}

func newSQLConnExecutor(q sqlQuerier) *sqlConnExecutor {
	return &sqlConnExecutor{q: q}
}

func (e *sqlConnExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.q.ExecContext(ctx, query, args...)
	return err
}

func (e *sqlConnExecutor) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Text-protocol values arrive as []byte; strings are easier to
		// compare and still bind back as parameters.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
