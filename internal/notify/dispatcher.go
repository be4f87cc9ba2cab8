package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

const (
	// DefaultPollInterval is how often the outbox is drained.
	DefaultPollInterval = 5 * time.Second
	// DefaultBatchSize is the number of rows claimed per batch.
	DefaultBatchSize = 50
	// DefaultMaxAttempts is how many times a row is tried before it is left alone.
	DefaultMaxAttempts = 5
	// BatchTimeout bounds one batch, sends included.
	BatchTimeout = time.Minute
	// maxErrorLength caps the failure reason stored on a row.
	maxErrorLength = 500
)

// Stats summarises one batch.
type Stats struct {
	Delivered int
	Failed    int
	NoRoute   int
}

// Dispatcher drains the notification outbox.
type Dispatcher struct {
	source      Source
	sender      Sender
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         zerolog.Logger
	deliveries  metric.Int64Counter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval sets the delay between batches.
func WithPollInterval(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.interval = d
		}
	}
}

// WithBatchSize sets the number of rows claimed per batch.
func WithBatchSize(n int) Option {
	return func(ds *Dispatcher) {
		if n > 0 {
			ds.batchSize = n
		}
	}
}

// WithMaxAttempts sets how often a row is tried.
func WithMaxAttempts(n int) Option {
	return func(ds *Dispatcher) {
		if n > 0 {
			ds.maxAttempts = n
		}
	}
}

// WithMeterProvider sets the meter provider for delivery counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(ds *Dispatcher) {
		if mp != nil {
			ds.deliveries = deliveriesCounter(mp)
		}
	}
}

// NewDispatcher creates a Dispatcher reading from source and delivering through sender.
func NewDispatcher(source Source, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:      source,
		sender:      sender,
		interval:    DefaultPollInterval,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		log:         logger.WithComponent("notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.deliveries == nil {
		d.deliveries = deliveriesCounter(otel.GetMeterProvider())
	}
	return d
}

func deliveriesCounter(mp metric.MeterProvider) metric.Int64Counter {
	c, err := mp.Meter("gitlab.com/yelinaung/expense-approvals/internal/notify").Int64Counter(
		"notify.deliveries", metric.WithDescription("Notification delivery attempts, by outcome"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create deliveries counter")
		return nil
	}
	return c
}

// Run drains the outbox until ctx is cancelled. Batch errors are logged and
// the loop carries on.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().
		Dur("interval", d.interval).
		Int("batch_size", d.batchSize).
		Int("max_attempts", d.maxAttempts).
		Msg("Notification dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		// Keep draining while batches come back full and clean. Failed rows
		// wait for the next tick.
		for {
			stats, err := d.DispatchOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					d.log.Error().Err(err).Msg("Notification batch failed")
				}
				break
			}
			if stats.Failed > 0 || stats.Delivered+stats.NoRoute < d.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.log.Info().Msg("Notification dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch and tries to deliver every row in it.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	batchCtx, cancel := context.WithTimeout(ctx, BatchTimeout)
	defer cancel()

	err := d.source.Batch(batchCtx, func(ctx context.Context, box Outbox) error {
		stats = Stats{}
		pending, err := box.PendingNotifications(ctx, d.batchSize, d.maxAttempts)
		if err != nil {
			return err
		}
		for _, n := range pending {
			if err := d.deliver(ctx, box, n, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to dispatch notifications: %w", err)
	}
	if stats != (Stats{}) {
		d.log.Debug().
			Int("delivered", stats.Delivered).
			Int("failed", stats.Failed).
			Int("no_route", stats.NoRoute).
			Msg("Notification batch dispatched")
	}
	return stats, nil
}

// deliver sends n and records the outcome. Only outbox errors are returned;
// send failures are recorded on the row.
func (d *Dispatcher) deliver(ctx context.Context, box Outbox, n models.Notification, stats *Stats) error {
	sendErr := d.sender.Send(ctx, n)
	switch {
	case sendErr == nil:
		stats.Delivered++
		d.count(ctx, "delivered", n.Type)
		return box.MarkDelivered(ctx, n.ID)

	case errors.Is(sendErr, ErrNoRoute):
		stats.NoRoute++
		d.count(ctx, "no_route", n.Type)
		d.log.Debug().
			Int64("notification_id", n.ID).
			Str("user_hash", logger.HashUserID(n.UserID)).
			Msg("Notification has no delivery channel")
		return box.MarkDelivered(ctx, n.ID)

	default:
		stats.Failed++
		d.count(ctx, "failed", n.Type)
		event := d.log.Warn()
		if n.Attempts+1 >= d.maxAttempts {
			event = d.log.Error()
		}
		event.Err(sendErr).
			Int64("notification_id", n.ID).
			Int("attempt", n.Attempts+1).
			Int("max_attempts", d.maxAttempts).
			Msg("Notification delivery failed")
		return box.MarkFailed(ctx, n.ID, truncate(sendErr.Error(), maxErrorLength))
	}
}

func (d *Dispatcher) count(ctx context.Context, outcome, kind string) {
	if d.deliveries == nil {
		return
	}
	d.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("type", kind),
	))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
