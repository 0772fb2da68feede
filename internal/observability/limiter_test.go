package observability

import (
	"context"
	"testing"
	"time"

	"pacer/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestInstrumentedLimiter(t *testing.T, rate, window int) (*InstrumentedLimiter, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()

	limiter, err := ratelimit.New(rate, window)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	instrumented, err := NewInstrumentedLimiter(limiter, "test", WithMeterProvider(mp), WithTracerProvider(tp))
	require.NoError(t, err)
	return instrumented, reader, recorder
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

func TestNewInstrumentedLimiter_GlobalProviders(t *testing.T) {
	limiter, err := ratelimit.New(1, 0)
	require.NoError(t, err)

	instrumented, err := NewInstrumentedLimiter(limiter, "global")
	require.NoError(t, err)
	assert.Zero(t, instrumented.Admit(time.Now()))
}

func TestInstrumentedLimiter_PassesDelaysThrough(t *testing.T) {
	instrumented, _, _ := newTestInstrumentedLimiter(t, 4, 0)

	now := time.Now()
	assert.Zero(t, instrumented.Admit(now))
	assert.Equal(t, 250*time.Millisecond, instrumented.Admit(now))
	assert.Equal(t, 500*time.Millisecond, instrumented.Admit(now))
}

func TestInstrumentedLimiter_RecordsAdmissions(t *testing.T) {
	instrumented, reader, _ := newTestInstrumentedLimiter(t, 1, 1)

	now := time.Now()
	for i := 0; i < 5; i++ {
		instrumented.Admit(now)
	}

	metrics := collect(t, reader)

	admissions, ok := metrics["ratelimit.admissions"]
	require.True(t, ok, "admissions counter should be exported")
	sum, ok := admissions.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[bool]int64)
	for _, dp := range sum.DataPoints {
		delayed, _ := dp.Attributes.Value(attribute.Key("delayed"))
		name, _ := dp.Attributes.Value(attribute.Key("limiter"))
		assert.Equal(t, "test", name.AsString())
		counts[delayed.AsBool()] = dp.Value
	}
	// Capacity of one plus the boundary event are immediate.
	assert.Equal(t, int64(2), counts[false])
	assert.Equal(t, int64(3), counts[true])

	delay, ok := metrics["ratelimit.delay"]
	require.True(t, ok, "delay histogram should be exported")
	hist, ok := delay.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var total float64
	var samples uint64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
		samples += dp.Count
	}
	assert.Equal(t, uint64(5), samples)
	assert.InDelta(t, 6.0, total, 1e-9) // 1s + 2s + 3s
}

func TestInstrumentedLimiter_RecordsSpans(t *testing.T) {
	instrumented, _, recorder := newTestInstrumentedLimiter(t, 2, 0)

	now := time.Now()
	instrumented.Admit(now)
	instrumented.Admit(now)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ratelimit.Admit", spans[0].Name())

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[1].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "test", attrs["limiter"].AsString())
	assert.Equal(t, int64(500000), attrs["ratelimit.delay_us"].AsInt64())
}

func TestInstrumentedLimiter_IsAdmitter(t *testing.T) {
	instrumented, _, _ := newTestInstrumentedLimiter(t, 1, 0)

	var a ratelimit.Admitter = instrumented
	waiter := ratelimit.NewWaiter(a,
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	_, err := waiter.Wait(context.Background())
	assert.NoError(t, err)
}
