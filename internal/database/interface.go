package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier runs statements. Repositories take a Querier so the same code
// serves the pool, a unit-of-work transaction and a rolled-back test tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner opens transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ Querier    = (*pgxpool.Pool)(nil)
	_ Querier    = (pgx.Tx)(nil)
	_ TxBeginner = (*pgxpool.Pool)(nil)
)
