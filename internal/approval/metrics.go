package approval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
)

const instrumentationName = "gitlab.com/yelinaung/expense-approvals/internal/approval"

type engineMetrics struct {
	submissions metric.Int64Counter
	decisions   metric.Int64Counter
	transitions metric.Int64Counter
	overrides   metric.Int64Counter
	duration    metric.Float64Histogram
}

func newEngineMetrics(mp metric.MeterProvider) *engineMetrics {
	meter := mp.Meter(instrumentationName)
	m := &engineMetrics{}

	var err error
	if m.submissions, err = meter.Int64Counter("approval.submissions",
		metric.WithDescription("Expenses submitted, by outcome")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create submissions counter")
	}
	if m.decisions, err = meter.Int64Counter("approval.decisions",
		metric.WithDescription("Approver decisions recorded, by action")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create decisions counter")
	}
	if m.transitions, err = meter.Int64Counter("approval.transitions",
		metric.WithDescription("Expense terminal transitions, by status and cause")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create transitions counter")
	}
	if m.overrides, err = meter.Int64Counter("approval.overrides",
		metric.WithDescription("Administrative overrides applied")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create overrides counter")
	}
	if m.duration, err = meter.Float64Histogram("approval.operation.duration",
		metric.WithDescription("Engine operation latency"),
		metric.WithUnit("ms")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create duration histogram")
	}
	return m
}

func (m *engineMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *engineMetrics) observe(ctx context.Context, op string, start time.Time, err error) {
	if m.duration == nil {
		return
	}
	m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("operation", op), attribute.Bool("error", err != nil)))
}

// startSpan opens an engine span. The returned finish func records err on the
// span and the latency histogram.
func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "approval."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.observe(ctx, op, start, err)
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
