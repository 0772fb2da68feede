package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pacer/internal/ratelimit"

	"github.com/spf13/cobra"
)

func newProxyCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "proxy <upstream-url>",
		Short: "Reverse proxy that paces each client to the configured rate",
		Long: `Forwards requests to the upstream URL. Each client IP gets its own limiter;
requests are held for their delay, or rejected with 429 when the delay
exceeds --max-wait.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseUpstream(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, opts.configFile)
			if err != nil {
				return err
			}

			rt, err := start(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			limiter, err := ratelimit.NewKeyedLimiter(cfg.Limiter.RatePerSecond, cfg.Limiter.WindowSeconds, cfg.Limiter.CleanupInterval)
			if err != nil {
				return err
			}
			defer limiter.Close()

			server := &http.Server{
				Addr:              listen,
				Handler:           newProxyHandler(limiter, cfg.Limiter.MaxWait, target),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("Starting proxy",
					"addr", server.Addr,
					"upstream", target.String(),
					"rate_per_second", cfg.Limiter.RatePerSecond,
					"window_seconds", cfg.Limiter.WindowSeconds,
					"max_wait", cfg.Limiter.MaxWait,
				)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("proxy server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("Shutting down proxy")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("Proxy forced to shutdown", "error", err)
			}
			return nil
		},
	}

	addLimiterFlags(cmd)
	cmd.Flags().Duration("max-wait", 0, "Longest delay to hold a request before rejecting it (overrides config)")
	cmd.Flags().StringVar(&listen, "listen", ":8080", "Address to listen on")

	return cmd
}

func parseUpstream(raw string) (*url.URL, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme must be http or https", raw)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: missing host", raw)
	}
	return target, nil
}

func newProxyHandler(limiter *ratelimit.KeyedLimiter, maxWait time.Duration, target *url.URL) http.Handler {
	return ratelimit.Middleware(limiter, maxWait)(httputil.NewSingleHostReverseProxy(target))
}
