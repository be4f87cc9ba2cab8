package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	deadline time.Time
}

func (b *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	b.deadline, _ = ctx.Deadline()
	return b.tx, nil
}

func TestRunInTx(t *testing.T) {
	t.Parallel()

	t.Run("commits on success", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{}}

		err := RunInTx(context.Background(), b, time.Second, func(context.Context, pgx.Tx) error { return nil })
		require.NoError(t, err)
		require.True(t, b.tx.committed)
		require.False(t, b.tx.rolledBack)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{}}
		boom := errors.New("boom")

		err := RunInTx(context.Background(), b, time.Second, func(context.Context, pgx.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
		require.False(t, b.tx.committed)
		require.True(t, b.tx.rolledBack)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{}}

		require.Panics(t, func() {
			_ = RunInTx(context.Background(), b, time.Second, func(context.Context, pgx.Tx) error { panic("kaboom") })
		})
		require.True(t, b.tx.rolledBack)
	})

	t.Run("reports commit failure", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("serialization failure")}}

		err := RunInTx(context.Background(), b, time.Second, func(context.Context, pgx.Tx) error { return nil })
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to commit transaction")
		require.True(t, b.tx.rolledBack)
	})

	t.Run("reports begin failure", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{beginErr: errors.New("pool closed")}

		err := RunInTx(context.Background(), b, time.Second, func(context.Context, pgx.Tx) error { return nil })
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to begin transaction")
	})

	t.Run("applies timeout when caller has no deadline", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{}}

		before := time.Now()
		err := RunInTx(context.Background(), b, 2*time.Second, func(context.Context, pgx.Tx) error { return nil })
		require.NoError(t, err)
		require.False(t, b.deadline.IsZero())
		require.WithinDuration(t, before.Add(2*time.Second), b.deadline, time.Second)
	})

	t.Run("aborts on cancelled context", func(t *testing.T) {
		t.Parallel()
		b := &fakeBeginner{tx: &fakeTx{}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RunInTx(ctx, b, time.Second, func(context.Context, pgx.Tx) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, b.tx.committed)
	})
}
