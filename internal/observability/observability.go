// Package observability wires OpenTelemetry into pacer. A Provider owns the
// trace pipeline (stdout or OTLP) and a meter pipeline exported to a private
// Prometheus registry; InstrumentedLimiter and MetricsServer consume it.
package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pacer/internal/models"
	"pacer/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider holds whichever telemetry pipelines were enabled. A zero Provider
// is valid and records nothing.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
}

// Setup builds the pipelines enabled in metrics and obs and installs them
// as the otel globals. The Provider must be shut down on exit.
func Setup(metrics models.MetricsConfig, obs models.ObservabilityConfig, ver version.Info) (*Provider, error) {
	res, err := newResource(obs.ServiceName, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}

	if obs.Tracing.Enabled {
		exporter, err := newSpanExporter(obs.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(newSampler(obs.Tracing.SampleRate)),
		)
		otel.SetTracerProvider(p.tracerProvider)
	}

	if metrics.Enabled {
		p.registry = prometheus.NewRegistry()
		reader, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

// Registry returns the Prometheus registry limiter metrics are exported to,
// or nil when metrics are disabled.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// InstrumentOptions binds an InstrumentedLimiter to this Provider's
// pipelines. Disabled pipelines fall back to the otel globals.
func (p *Provider) InstrumentOptions() []InstrumentOption {
	var opts []InstrumentOption
	if p.meterProvider != nil {
		opts = append(opts, WithMeterProvider(p.meterProvider))
	}
	if p.tracerProvider != nil {
		opts = append(opts, WithTracerProvider(p.tracerProvider))
	}
	return opts
}

// Shutdown flushes pending spans and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observability shutdown: %w", err)
	}
	return nil
}

func newResource(serviceName string, ver version.Info) (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ver.Version),
			semconv.ServiceInstanceID(ver.InstanceID),
			semconv.HostName(ver.Hostname),
			semconv.DeploymentEnvironment(deploymentEnvironment()),
			attribute.String("git.commit", ver.GitCommit),
		),
	)
}

func newSpanExporter(cfg models.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case models.TraceExporterStdout:
		// stdout carries paced output, so spans go to stderr.
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case models.TraceExporterOTLP:
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// deploymentEnvironment reads PACER_ENVIRONMENT, then ENVIRONMENT.
func deploymentEnvironment() string {
	for _, key := range []string{"PACER_ENVIRONMENT", "ENVIRONMENT"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "development"
}
