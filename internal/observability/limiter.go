package observability

import (
	"context"
	"time"

	"pacer/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedLimiter wraps a ratelimit.Admitter with OpenTelemetry tracing
// and metrics. It records one span, one admission count and one delay sample
// per call.
type InstrumentedLimiter struct {
	inner      ratelimit.Admitter
	name       string
	tracer     trace.Tracer
	admissions metric.Int64Counter
	delay      metric.Float64Histogram
}

// InstrumentOption configures an InstrumentedLimiter.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider records metrics to mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.meterProvider = mp
	}
}

// WithTracerProvider records spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.tracerProvider = tp
	}
}

// NewInstrumentedLimiter wraps inner. name is attached to every span and
// measurement as the "limiter" attribute.
func NewInstrumentedLimiter(inner ratelimit.Admitter, name string, opts ...InstrumentOption) (*InstrumentedLimiter, error) {
	cfg := instrumentConfig{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.meterProvider.Meter("pacer/ratelimit")

	admissions, err := meter.Int64Counter(
		"ratelimit.admissions",
		metric.WithDescription("Number of events admitted by the limiter"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	delay, err := meter.Float64Histogram(
		"ratelimit.delay",
		metric.WithDescription("Delay assigned to admitted events in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:      inner,
		name:       name,
		tracer:     cfg.tracerProvider.Tracer("pacer/ratelimit"),
		admissions: admissions,
		delay:      delay,
	}, nil
}

// Admit delegates to the wrapped Admitter and records the outcome.
func (l *InstrumentedLimiter) Admit(ts time.Time) time.Duration {
	ctx, span := l.tracer.Start(context.Background(), "ratelimit.Admit",
		trace.WithAttributes(attribute.String("limiter", l.name)),
	)
	defer span.End()

	d := l.inner.Admit(ts)

	span.SetAttributes(attribute.Int64("ratelimit.delay_us", d.Microseconds()))

	attrs := metric.WithAttributes(
		attribute.String("limiter", l.name),
		attribute.Bool("delayed", d > 0),
	)
	l.admissions.Add(ctx, 1, attrs)
	l.delay.Record(ctx, d.Seconds(), attrs)

	return d
}
