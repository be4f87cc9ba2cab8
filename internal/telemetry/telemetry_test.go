package telemetry

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-approvals/internal/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetup_None(t *testing.T) {
	p, err := Setup(context.Background(), Options{Exporter: config.ExporterNone})
	require.NoError(t, err)
	require.NotNil(t, p.TracerProvider)
	require.NotNil(t, p.MeterProvider)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Options{Exporter: "zipkin", ServiceName: "svc"})
	require.ErrorContains(t, err, "unknown telemetry exporter")
}

func TestSetup_Stdout(t *testing.T) {
	out := &syncBuffer{}
	ctx := context.Background()
	p, err := Setup(ctx, Options{
		Exporter:       config.ExporterStdout,
		ServiceName:    "expense-approvals-test",
		ServiceVersion: "test",
		Writer:         out,
	})
	require.NoError(t, err)

	_, span := p.TracerProvider.Tracer("test").Start(ctx, "approval.test_span")
	span.End()

	counter, err := p.MeterProvider.Meter("test").Int64Counter("approval.test_counter")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, p.Shutdown(ctx))

	got := out.String()
	require.Contains(t, got, "approval.test_span")
	require.Contains(t, got, "approval.test_counter")
	require.Contains(t, got, "expense-approvals-test")
}
