// Package telemetry installs OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"gitlab.com/yelinaung/expense-approvals/internal/config"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
)

// metricInterval is how often metrics are pushed to the exporter.
const metricInterval = 30 * time.Second

// Options selects and configures the exporters.
type Options struct {
	Exporter       string
	ServiceName    string
	ServiceVersion string
	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// Providers holds the installed providers.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Shutdown flushes and stops every provider. It is safe to call on no-op providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// Setup builds providers for the configured exporter and installs them as
// the global otel providers. The "none" exporter installs nothing and returns
// no-op providers.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	if opts.Exporter == "" || opts.Exporter == config.ExporterNone {
		logger.Log.Info().Msg("Telemetry disabled")
		return &Providers{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", opts.ServiceName),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, opts)
	if err != nil {
		return nil, err
	}
	metricExporter, err := newMetricExporter(ctx, opts)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Log.Info().Str("exporter", opts.Exporter).Str("service", opts.ServiceName).Msg("Telemetry enabled")

	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		shutdown:       []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}, nil
}

func newSpanExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch opts.Exporter {
	case config.ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
	case config.ExporterOTLPGRPC:
		exp, err = otlptracegrpc.New(ctx)
	case config.ExporterOTLPHTTP:
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s span exporter: %w", opts.Exporter, err)
	}
	return exp, nil
}

func newMetricExporter(ctx context.Context, opts Options) (sdkmetric.Exporter, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch opts.Exporter {
	case config.ExporterStdout:
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
	case config.ExporterOTLPGRPC:
		exp, err = otlpmetricgrpc.New(ctx)
	case config.ExporterOTLPHTTP:
		exp, err = otlpmetrichttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s metric exporter: %w", opts.Exporter, err)
	}
	return exp, nil
}
