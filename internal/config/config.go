package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pacer/internal/models"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from file and environment variables and
// validates the result.
func Load(configPath string) (*models.Config, error) {
	config, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Read layers the file and then environment variables over the defaults
// without validating, so callers can apply further overrides first.
func Read(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies PACER_* overrides. Values that fail to parse
// are ignored and the earlier layer wins.
func loadFromEnvironment(config *models.Config) {
	lim := &config.Limiter
	envInt("PACER_RATE", &lim.RatePerSecond)
	envInt("PACER_WINDOW", &lim.WindowSeconds)
	envInt("PACER_WORKERS", &lim.Workers)
	envDuration("PACER_MAX_WAIT", &lim.MaxWait)
	envDuration("PACER_CLEANUP_INTERVAL", &lim.CleanupInterval)

	log := &config.Logging
	envString("PACER_LOG_LEVEL", &log.Level)
	envString("PACER_LOG_FORMAT", &log.Format)
	envString("PACER_LOG_OUTPUT", &log.Output)
	envString("PACER_LOG_FILE_PATH", &log.FilePath)

	envBool("PACER_METRICS_ENABLED", &config.Metrics.Enabled)
	envString("PACER_METRICS_PATH", &config.Metrics.Path)
	envInt("PACER_METRICS_PORT", &config.Metrics.Port)

	obs := &config.Observability
	envString("PACER_SERVICE_NAME", &obs.ServiceName)
	envBool("PACER_TRACING_ENABLED", &obs.Tracing.Enabled)
	envString("PACER_TRACING_EXPORTER", &obs.Tracing.Exporter)
	envString("PACER_OTLP_ENDPOINT", &obs.Tracing.OTLPEndpoint)
	envFloat("PACER_TRACING_SAMPLE_RATE", &obs.Tracing.SampleRate)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func envFloat(key string, dst *float64) {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = f
	}
}

func envDuration(key string, dst *time.Duration) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = d
	}
}

// envBool treats "true" in any case as true and any other value as false.
func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true")
	}
}

// SaveExample writes the defaults, with a two second burst window and a
// local OTLP endpoint filled in, as YAML to filePath.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	example := models.NewDefaultConfig()
	example.Limiter.WindowSeconds = 2
	example.Observability.Tracing.OTLPEndpoint = "localhost:4317"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
