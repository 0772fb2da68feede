// Package models holds pacer's configuration types. Each section validates
// itself so a bad value is reported before any limiter is built.
package models

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Trace exporter constants
const (
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// Config is the root of pacer's YAML configuration.
type Config struct {
	Limiter       LimiterConfig       `yaml:"limiter" json:"limiter"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// LimiterConfig sets the admission rate and burst window. Workers applies to
// run; MaxWait and CleanupInterval apply to proxy.
type LimiterConfig struct {
	RatePerSecond   int           `yaml:"rate_per_second" json:"rate_per_second"`
	WindowSeconds   int           `yaml:"window_seconds" json:"window_seconds"`
	Workers         int           `yaml:"workers" json:"workers"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig paces strictly at 10 events per second with one worker,
// logs to stderr and leaves metrics and tracing off.
func NewDefaultConfig() *Config {
	return &Config{
		Limiter: LimiterConfig{
			RatePerSecond:   10,
			WindowSeconds:   0,
			Workers:         1,
			MaxWait:         30 * time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "pacer",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   TraceExporterStdout,
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Limiter.Validate(); err != nil {
		return fmt.Errorf("invalid limiter config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (lc *LimiterConfig) Validate() error {
	if lc.RatePerSecond <= 0 {
		return errors.New("rate per second must be positive")
	}

	if lc.WindowSeconds < 0 {
		return errors.New("window seconds cannot be negative")
	}

	if lc.WindowSeconds > 0 && lc.RatePerSecond > math.MaxInt/lc.WindowSeconds {
		return errors.New("rate per second times window seconds overflows")
	}

	if lc.Workers <= 0 {
		return errors.New("workers must be positive")
	}

	if lc.MaxWait < 0 {
		return errors.New("max wait cannot be negative")
	}

	if lc.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}

	return nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
	logOutputs = []string{"stdout", "stderr", "file"}
)

func (lc *LoggingConfig) Validate() error {
	switch {
	case !slices.Contains(logLevels, lc.Level):
		return fmt.Errorf("invalid log level: %s", lc.Level)
	case !slices.Contains(logFormats, lc.Format):
		return fmt.Errorf("invalid log format: %s", lc.Format)
	case !slices.Contains(logOutputs, lc.Output):
		return fmt.Errorf("invalid log output: %s", lc.Output)
	case lc.Output == "file" && lc.FilePath == "":
		return errors.New("file path is required when output is file")
	}
	return nil
}

// Validate checks the endpoint only when metrics are enabled.
func (mc *MetricsConfig) Validate() error {
	switch {
	case !mc.Enabled:
		return nil
	case mc.Path == "" || mc.Path[0] != '/':
		return fmt.Errorf("metrics path must start with /: %q", mc.Path)
	case mc.Port < 1 || mc.Port > 65535:
		return fmt.Errorf("metrics port out of range: %d", mc.Port)
	}
	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case TraceExporterStdout:
	case TraceExporterOTLP:
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required when exporter is otlp")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}
