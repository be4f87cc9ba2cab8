package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// LogSender writes notifications to the log. It is the fallback channel when
// no messaging integration is configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.WithComponent("notify")}
}

// Send logs n. User identifiers are hashed.
func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.log.Info().
		Int64("notification_id", n.ID).
		Str("user_hash", logger.HashUserID(n.UserID)).
		Int64("expense_id", n.ExpenseID).
		Str("type", n.Type).
		Str("title", n.Title).
		Msg("Notification")
	return nil
}

// Fanout delivers to every sender in order. Any failure other than ErrNoRoute
// fails the whole notification, so a retry may repeat earlier channels.
type Fanout []Sender

// Send implements Sender.
func (f Fanout) Send(ctx context.Context, n models.Notification) error {
	var (
		routed bool
		errs   []error
	)
	for _, s := range f {
		err := s.Send(ctx, n)
		switch {
		case err == nil:
			routed = true
		case errors.Is(err, ErrNoRoute):
		default:
			routed = true
			errs = append(errs, err)
		}
	}
	if !routed {
		return ErrNoRoute
	}
	return errors.Join(errs...)
}
