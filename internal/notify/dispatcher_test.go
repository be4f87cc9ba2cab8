package notify_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/approval/memstore"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
	"gitlab.com/yelinaung/expense-approvals/internal/notify"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []models.Notification
	fail map[int64]error
}

func (s *recordingSender) Send(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[n.UserID]; err != nil {
		return err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func queue(t *testing.T, store *memstore.Store, userIDs ...int64) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx approval.Tx) error {
		for _, id := range userIDs {
			if err := tx.InsertNotification(ctx, &models.Notification{
				UserID: id, ExpenseID: 1, Type: models.NotificationApprovalRequested, Title: "Approval requested",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDispatcher_DispatchOnce(t *testing.T) {
	t.Parallel()

	t.Run("delivers and marks rows", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		queue(t, store, 1, 2, 3)
		sender := &recordingSender{}
		d := notify.NewDispatcher(store, sender)

		stats, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, notify.Stats{Delivered: 3}, stats)
		require.Equal(t, 3, sender.count())

		for _, n := range store.Notifications() {
			require.NotNil(t, n.DeliveredAt)
			require.Equal(t, 1, n.Attempts)
		}

		stats, err = d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Zero(t, stats)
		require.Equal(t, 3, sender.count())
	})

	t.Run("respects batch size", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		queue(t, store, 1, 2, 3, 4, 5)
		d := notify.NewDispatcher(store, &recordingSender{}, notify.WithBatchSize(2))

		stats, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, stats.Delivered)
	})

	t.Run("failures are retried until attempts run out", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		queue(t, store, 1, 2)
		sender := &recordingSender{fail: map[int64]error{2: errors.New("chat not found")}}
		d := notify.NewDispatcher(store, sender, notify.WithMaxAttempts(2))

		stats, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, notify.Stats{Delivered: 1, Failed: 1}, stats)

		stats, err = d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, notify.Stats{Failed: 1}, stats)

		stats, err = d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Zero(t, stats)

		failed := store.Notifications()[1]
		require.Nil(t, failed.DeliveredAt)
		require.Equal(t, 2, failed.Attempts)
		require.Equal(t, "chat not found", failed.LastError)
	})

	t.Run("long failure reasons are truncated", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		queue(t, store, 7)
		sender := &recordingSender{fail: map[int64]error{7: errors.New(strings.Repeat("x", 2000))}}
		d := notify.NewDispatcher(store, sender)

		_, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Len(t, store.Notifications()[0].LastError, 500)
	})

	t.Run("no route counts as delivered", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		queue(t, store, 9)
		sender := notify.SenderFunc(func(context.Context, models.Notification) error {
			return notify.ErrNoRoute
		})
		d := notify.NewDispatcher(store, sender)

		stats, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, notify.Stats{NoRoute: 1}, stats)
		require.NotNil(t, store.Notifications()[0].DeliveredAt)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := notify.NewDispatcher(memstore.New(), &recordingSender{})
		_, err := d.DispatchOnce(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDispatcher_Run(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	queue(t, store, 1, 2, 3)
	sender := &recordingSender{}
	d := notify.NewDispatcher(store, sender, notify.WithPollInterval(10*time.Millisecond), notify.WithBatchSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return sender.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	queue(t, store, 4)
	require.Eventually(t, func() bool { return sender.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestFanout(t *testing.T) {
	t.Parallel()

	ok := notify.SenderFunc(func(context.Context, models.Notification) error { return nil })
	noRoute := notify.SenderFunc(func(context.Context, models.Notification) error { return notify.ErrNoRoute })
	broken := notify.SenderFunc(func(context.Context, models.Notification) error { return errors.New("boom") })

	require.NoError(t, notify.Fanout{ok, noRoute}.Send(context.Background(), models.Notification{}))
	require.ErrorIs(t, notify.Fanout{noRoute, noRoute}.Send(context.Background(), models.Notification{}), notify.ErrNoRoute)
	require.ErrorContains(t, notify.Fanout{ok, broken}.Send(context.Background(), models.Notification{}), "boom")
	require.ErrorIs(t, notify.Fanout{}.Send(context.Background(), models.Notification{}), notify.ErrNoRoute)
	require.NoError(t, notify.NewLogSender().Send(context.Background(), models.Notification{ID: 1, UserID: 2}))
}
