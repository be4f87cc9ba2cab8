// Package notify delivers queued notification rows to users.
//
// The approval engine writes notifications into an outbox in the same
// transaction as the state change they describe. A Dispatcher drains that
// outbox in batches and hands each row to a Sender. Delivery is at least once:
// a row is marked delivered only after its Sender returned, and failed rows are
// retried until they run out of attempts.
package notify

import (
	"context"
	"errors"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ErrNoRoute reports that a recipient has no delivery channel. Such rows are
// marked delivered since retrying cannot help.
var ErrNoRoute = errors.New("recipient has no delivery channel")

// Outbox is the notification queue as seen by one dispatch batch.
type Outbox interface {
	PendingNotifications(ctx context.Context, limit, maxAttempts int) ([]models.Notification, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Source opens dispatch batches. Implementations backed by a database run fn
// in one transaction so that concurrent dispatchers skip each other's rows.
type Source interface {
	Batch(ctx context.Context, fn func(ctx context.Context, box Outbox) error) error
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n models.Notification) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}
