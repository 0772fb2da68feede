package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Test limiter defaults
	assert.Equal(t, 10, config.Limiter.RatePerSecond)
	assert.Equal(t, 0, config.Limiter.WindowSeconds)
	assert.Equal(t, 1, config.Limiter.Workers)
	assert.Equal(t, 30*time.Second, config.Limiter.MaxWait)
	assert.Equal(t, 5*time.Minute, config.Limiter.CleanupInterval)

	// Test logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, "stderr", config.Logging.Output)

	// Test metrics defaults
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)

	// Test observability defaults
	assert.Equal(t, "pacer", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)
	assert.Equal(t, "stdout", config.Observability.Tracing.Exporter)
	assert.Equal(t, 1.0, config.Observability.Tracing.SampleRate)

	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:     "zero rate",
			mutate:   func(c *Config) { c.Limiter.RatePerSecond = 0 },
			errorMsg: "invalid limiter config: rate per second must be positive",
		},
		{
			name:     "negative window",
			mutate:   func(c *Config) { c.Limiter.WindowSeconds = -1 },
			errorMsg: "invalid limiter config: window seconds cannot be negative",
		},
		{
			name: "capacity overflows",
			mutate: func(c *Config) {
				c.Limiter.RatePerSecond = math.MaxInt/2 + 1
				c.Limiter.WindowSeconds = 2
			},
			errorMsg: "invalid limiter config: rate per second times window seconds overflows",
		},
		{
			name:     "no workers",
			mutate:   func(c *Config) { c.Limiter.Workers = 0 },
			errorMsg: "invalid limiter config: workers must be positive",
		},
		{
			name:     "negative max wait",
			mutate:   func(c *Config) { c.Limiter.MaxWait = -time.Second },
			errorMsg: "invalid limiter config: max wait cannot be negative",
		},
		{
			name:     "zero cleanup interval",
			mutate:   func(c *Config) { c.Limiter.CleanupInterval = 0 },
			errorMsg: "invalid limiter config: cleanup interval must be positive",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "invalid logging config: invalid log level: verbose",
		},
		{
			name:     "bad log format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "invalid logging config: invalid log format: xml",
		},
		{
			name:     "bad log output",
			mutate:   func(c *Config) { c.Logging.Output = "syslog" },
			errorMsg: "invalid logging config: invalid log output: syslog",
		},
		{
			name:     "file output without path",
			mutate:   func(c *Config) { c.Logging.Output = "file" },
			errorMsg: "invalid logging config: file path is required when output is file",
		},
		{
			name: "metrics without path",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = ""
			},
			errorMsg: `invalid metrics config: metrics path must start with /: ""`,
		},
		{
			name: "relative metrics path",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = "metrics"
			},
			errorMsg: `invalid metrics config: metrics path must start with /: "metrics"`,
		},
		{
			name: "metrics port out of range",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 70000
			},
			errorMsg: "invalid metrics config: metrics port out of range: 70000",
		},
		{
			name:     "empty service name",
			mutate:   func(c *Config) { c.Observability.ServiceName = "" },
			errorMsg: "invalid observability config: service name cannot be empty",
		},
		{
			name: "unknown exporter",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "zipkin"
			},
			errorMsg: "invalid observability config: invalid trace exporter: zipkin",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = TraceExporterOTLP
			},
			errorMsg: "invalid observability config: OTLP endpoint is required when exporter is otlp",
		},
		{
			name: "sample rate above one",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.SampleRate = 1.5
			},
			errorMsg: "invalid observability config: sample rate must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			assert.EqualError(t, err, tt.errorMsg)
		})
	}
}

func TestConfig_Validate_DisabledSectionsSkipChecks(t *testing.T) {
	config := NewDefaultConfig()
	config.Metrics.Port = -1
	config.Observability.Tracing.Exporter = "anything"

	assert.NoError(t, config.Validate())
}

func TestConfig_Validate_OTLPWithEndpoint(t *testing.T) {
	config := NewDefaultConfig()
	config.Observability.Tracing.Enabled = true
	config.Observability.Tracing.Exporter = TraceExporterOTLP
	config.Observability.Tracing.OTLPEndpoint = "localhost:4317"

	assert.NoError(t, config.Validate())
}
