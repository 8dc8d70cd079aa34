package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupOTelTest(t *testing.T) (*OTelProvider, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	provider, err := NewOTel(WithMeterProvider(mp), WithTracerProvider(tp))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	return provider, reader, recorder
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTelProvider_RecordPoll(t *testing.T) {
	provider, reader, _ := setupOTelTest(t)
	ctx := context.Background()

	provider.RecordPoll(ctx, true, 12*time.Millisecond, 3)
	provider.RecordPoll(ctx, true, 8*time.Millisecond, 3)
	provider.RecordPoll(ctx, false, 30*time.Millisecond, 0)
	provider.RecordPollSkipped(ctx)

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumInt64(t, metrics["flare.poll.success"]))
	assert.Equal(t, int64(1), sumInt64(t, metrics["flare.poll.failure"]))
	assert.Equal(t, int64(1), sumInt64(t, metrics["flare.poll.skipped"]))

	hist, ok := metrics["flare.poll.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestOTelProvider_RecordEvaluation(t *testing.T) {
	provider, reader, _ := setupOTelTest(t)
	ctx := context.Background()

	provider.RecordEvaluation(ctx, "TARGETING_MATCH", "", time.Millisecond)
	provider.RecordEvaluation(ctx, "ERROR", "FLAG_NOT_FOUND", time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumInt64(t, metrics["flare.evaluations"]))
}

func TestOTelProvider_SnapshotSizeGauge(t *testing.T) {
	provider, reader, _ := setupOTelTest(t)

	provider.RecordSnapshotSize(7)

	metrics := collect(t, reader)
	gauge, ok := metrics["flare.snapshot.size"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
}

func TestOTelProvider_StartSpan(t *testing.T) {
	provider, _, recorder := setupOTelTest(t)

	_, span := provider.StartSpan(context.Background(), "flare.fetch_all",
		WithAttributes(String("scope", "prod"), Int("attempt", 1)))
	span.SetAttributes(Bool("ok", false), Int64("status", 500))
	span.AddEvent("retry", Duration("backoff", 100*time.Millisecond))
	span.RecordError(errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "flare.fetch_all", ended[0].Name())
	assert.Len(t, ended[0].Events(), 2) // retry + exception
}

func TestNoOpProvider(t *testing.T) {
	var p Provider = OrNoOp(nil)
	ctx := context.Background()

	ctx2, span := p.StartSpan(ctx, "noop")
	assert.Equal(t, ctx, ctx2)
	span.SetAttributes(String("a", "b"))
	span.RecordError(errors.New("x"))
	span.AddEvent("e")
	span.End()

	p.RecordPoll(ctx, true, time.Second, 1)
	p.RecordPollSkipped(ctx)
	p.RecordEvaluation(ctx, "STATIC", "", time.Second)
	p.RecordSnapshotSize(1)
	assert.NoError(t, p.Shutdown(ctx))
}
