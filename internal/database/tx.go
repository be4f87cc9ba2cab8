package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultTxTimeout bounds a unit of work when the caller's context has no deadline.
const DefaultTxTimeout = 5 * time.Second

// RunInTx executes fn inside a single transaction. The transaction is committed
// only if fn returns nil; any error or panic rolls it back. When ctx carries no
// deadline the unit of work is bounded by timeout (DefaultTxTimeout if zero).
func RunInTx(ctx context.Context, db TxBeginner, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
