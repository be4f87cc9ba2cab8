// Package approval implements the expense approval workflow engine: rule
// selection, workflow construction, decision processing and administrative
// override. All ledger and status mutations run inside one Store unit of work.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/expense-approvals/internal/exchange"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// Engine runs approval workflows against a Store.
type Engine struct {
	store     Store
	converter exchange.Service
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
	tracer    trace.Tracer
	metrics   *engineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithConverter sets the currency converter used on submission.
func WithConverter(c exchange.Service) Option {
	return func(e *Engine) { e.converter = c }
}

// WithClock overrides the time source used for decision timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventIDs overrides the audit event id generator.
func WithEventIDs(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithMeterProvider sets the meter provider for engine metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.metrics = newEngineMetrics(mp) }
}

// WithTracerProvider sets the tracer provider for engine spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(instrumentationName) }
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		newID:  newEventID,
		log:    logger.WithComponent("approval"),
		tracer: defaultTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newEngineMetrics(otel.GetMeterProvider())
	}
	return e
}

// notifyOwner queues the status-change notification for the expense owner.
func notifyOwner(ctx context.Context, tx Tx, expense *models.Expense, status models.ExpenseStatus, kind string) error {
	var title, verb string
	switch kind {
	case models.NotificationExpenseAutoApproved:
		title, verb = "Expense auto-approved", "was approved automatically"
	case models.NotificationExpenseOverridden:
		title, verb = "Expense "+string(status)+" by administrator", "was "+string(status)+" by an administrator"
	case models.NotificationExpenseRejected:
		title, verb = "Expense rejected", "was rejected"
	default:
		title, verb = "Expense approved", "was approved"
	}

	n := &models.Notification{
		UserID:    expense.EmployeeID,
		ExpenseID: expense.ID,
		Type:      kind,
		Title:     title,
		Message:   fmt.Sprintf("Expense #%d (%s) %s.", expense.ID, describeAmount(expense), verb),
	}
	if err := tx.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to queue owner notification: %w", err)
	}
	return nil
}

// notifyApprovers queues approval requests for the given pending rows.
func notifyApprovers(ctx context.Context, tx Tx, expense *models.Expense, entries []models.ApprovalEntry) error {
	for _, entry := range entries {
		n := &models.Notification{
			UserID:    entry.ApproverID,
			ExpenseID: expense.ID,
			Type:      models.NotificationApprovalRequested,
			Title:     "Approval requested",
			Message:   fmt.Sprintf("Expense #%d (%s) awaits your approval: %s", expense.ID, describeAmount(expense), expense.Description),
		}
		if err := tx.InsertNotification(ctx, n); err != nil {
			return fmt.Errorf("failed to queue approval request: %w", err)
		}
	}
	return nil
}

func describeAmount(expense *models.Expense) string {
	return fmt.Sprintf("%s %s", expense.Currency, expense.Amount.StringFixed(2))
}

func statusNotification(status models.ExpenseStatus) string {
	if status == models.ExpenseStatusRejected {
		return models.NotificationExpenseRejected
	}
	return models.NotificationExpenseApproved
}

func decisionAction(action models.ApprovalStatus) error {
	if action != models.ApprovalStatusApproved && action != models.ApprovalStatusRejected {
		return Invalid("action must be approved or rejected, got %q", action)
	}
	return nil
}
