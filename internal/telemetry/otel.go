package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "github.com/OrlandoBitencourt/flare"
	tracerName = "github.com/OrlandoBitencourt/flare"
)

// OTelProvider implements Provider using OpenTelemetry
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	pollDuration metric.Float64Histogram
	pollSuccess  metric.Int64Counter
	pollFailure  metric.Int64Counter
	pollSkipped  metric.Int64Counter
	evaluations  metric.Int64Counter
	snapshotSize metric.Int64ObservableGauge

	// last published snapshot size, read by the gauge callback
	currentSize atomic.Int64
}

// OTelOption configures an OTelProvider
type OTelOption func(*otelConfig)

type otelConfig struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// NewOTel creates a new OpenTelemetry provider
func NewOTel(opts ...OTelOption) (*OTelProvider, error) {
	cfg := &otelConfig{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	provider := &OTelProvider{
		tracer: cfg.tracerProvider.Tracer(tracerName),
		meter:  cfg.meterProvider.Meter(meterName),
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}

	return provider, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.pollDuration, err = o.meter.Float64Histogram(
		"flare.poll.duration",
		metric.WithDescription("Duration of snapshot poll ticks"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.pollSuccess, err = o.meter.Int64Counter(
		"flare.poll.success",
		metric.WithDescription("Number of poll ticks that published a snapshot"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return err
	}

	o.pollFailure, err = o.meter.Int64Counter(
		"flare.poll.failure",
		metric.WithDescription("Number of failed poll ticks"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return err
	}

	o.pollSkipped, err = o.meter.Int64Counter(
		"flare.poll.skipped",
		metric.WithDescription("Number of poll ticks skipped because a fetch was in flight"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return err
	}

	o.evaluations, err = o.meter.Int64Counter(
		"flare.evaluations",
		metric.WithDescription("Number of single flag resolutions"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return err
	}

	o.snapshotSize, err = o.meter.Int64ObservableGauge(
		"flare.snapshot.size",
		metric.WithDescription("Number of keys in the current snapshot"),
		metric.WithUnit("{flag}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(o.currentSize.Load())
			return nil
		}),
	)
	if err != nil {
		return err
	}

	return nil
}

// StartSpan creates a new trace span
func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	otelAttrs := make([]attribute.KeyValue, len(config.Attributes))
	for i, attr := range config.Attributes {
		otelAttrs[i] = convertAttribute(attr)
	}

	ctx, otelSpan := o.tracer.Start(ctx, name, trace.WithAttributes(otelAttrs...))
	return ctx, &OTelSpan{span: otelSpan}
}

func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

// RecordPoll records the outcome of one poll tick
func (o *OTelProvider) RecordPoll(ctx context.Context, success bool, duration time.Duration, flagCount int) {
	o.pollDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Bool("success", success)))

	if success {
		o.pollSuccess.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("flag.count", flagCount),
		))
		return
	}
	o.pollFailure.Add(ctx, 1)
}

// RecordPollSkipped records a tick skipped because a fetch was in flight
func (o *OTelProvider) RecordPollSkipped(ctx context.Context) {
	o.pollSkipped.Add(ctx, 1)
}

// RecordEvaluation records one single-flag resolution
func (o *OTelProvider) RecordEvaluation(ctx context.Context, reason string, errorCode string, duration time.Duration) {
	o.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("error.code", errorCode),
	))
}

// RecordSnapshotSize stores the size reported by the snapshot gauge
func (o *OTelProvider) RecordSnapshotSize(size int) {
	o.currentSize.Store(int64(size))
}

// Shutdown is a no-op; the SDK providers are owned by the caller.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	return nil
}

// OTelSpan wraps an OpenTelemetry span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() {
	s.span.End()
}

func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.SetAttributes(otelAttrs...)
}

func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}
