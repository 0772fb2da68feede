package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pacer/internal/config"
	"pacer/internal/logger"
	"pacer/internal/models"
	"pacer/internal/observability"
	"pacer/internal/ratelimit"
	"pacer/internal/version"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pacer",
		Short: "Pace events to a fixed rate with optional burst allowance",
		Long: `pacer delays events so they never exceed a configured rate per second.
An optional window lets up to rate*window events through in a burst before
pacing starts.`,
		Version:       version.GetInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to configuration file")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newProxyCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// addLimiterFlags registers the flags that override the limiter section of
// the configuration.
func addLimiterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("rate", 0, "Events per second (overrides config)")
	cmd.Flags().Int("window", 0, "Burst window in seconds (overrides config)")
}

// loadConfig reads the configuration file and environment, applies any
// limiter flags the user set explicitly, then validates the result once.
func loadConfig(cmd *cobra.Command, path string) (*models.Config, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.Limiter.RatePerSecond, _ = flags.GetInt("rate")
	}
	if flags.Changed("window") {
		cfg.Limiter.WindowSeconds, _ = flags.GetInt("window")
	}
	if flags.Changed("workers") {
		cfg.Limiter.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-wait") {
		cfg.Limiter.MaxWait, _ = flags.GetDuration("max-wait")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runtime owns the logging and observability resources of one command.
type runtime struct {
	cfg      *models.Config
	closer   io.Closer
	provider *observability.Provider
	metrics  *observability.MetricsServer
}

func start(cfg *models.Config) (*runtime, error) {
	ver := version.GetInfo()

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(log)

	provider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	rt := &runtime{cfg: cfg, closer: closer, provider: provider}

	if cfg.Metrics.Enabled {
		var serverOpts []observability.ServerOption
		if cfg.Observability.Tracing.Enabled {
			serverOpts = append(serverOpts, observability.WithTracing(cfg.Observability.ServiceName))
		}
		rt.metrics = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, provider, serverOpts...)
		go func() {
			if err := rt.metrics.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	return rt, nil
}

// instrument wraps a with tracing and metrics when either is enabled.
func (rt *runtime) instrument(a ratelimit.Admitter, name string) (ratelimit.Admitter, error) {
	if !rt.cfg.Metrics.Enabled && !rt.cfg.Observability.Tracing.Enabled {
		return a, nil
	}
	instrumented, err := observability.NewInstrumentedLimiter(a, name, rt.provider.InstrumentOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to instrument limiter: %w", err)
	}
	return instrumented, nil
}

// Close stops the metrics server, flushes telemetry and closes the log file.
func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rt.metrics != nil {
		if err := rt.metrics.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}
	if err := rt.provider.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown observability", "error", err)
	}
	if rt.closer != nil {
		rt.closer.Close()
	}
}
