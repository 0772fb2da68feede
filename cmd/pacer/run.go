package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pacer/internal/pace"
	"pacer/internal/ratelimit"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Copy input lines to stdout no faster than the configured rate",
		Long: `Reads lines from the given files (or stdin when none are given, or for "-")
and writes each one to stdout once the limiter admits it.`,
		Example: `  tail -f requests.log | pacer run --rate 5
  pacer run --rate 100 --window 2 --workers 4 urls.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts.configFile)
			if err != nil {
				return err
			}

			rt, err := start(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			limiter, err := ratelimit.New(cfg.Limiter.RatePerSecond, cfg.Limiter.WindowSeconds)
			if err != nil {
				return err
			}
			admitter, err := rt.instrument(limiter, "run")
			if err != nil {
				return err
			}

			in, closeInputs, err := openInputs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			defer closeInputs()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("Pacing input",
				"rate_per_second", limiter.Rate(),
				"window_seconds", limiter.Window(),
				"workers", cfg.Limiter.Workers,
			)

			stats, err := pace.Run(ctx, in, cmd.OutOrStdout(), ratelimit.NewWaiter(admitter), pace.Options{
				Workers: cfg.Limiter.Workers,
			})

			slog.Info("Pacing finished",
				"lines", stats.Lines,
				"total_delay", stats.TotalDelay,
				"max_delay", stats.MaxDelay,
			)

			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	addLimiterFlags(cmd)
	cmd.Flags().Int("workers", 0, "Concurrent emitters; more than one may reorder lines (overrides config)")

	return cmd
}

// openInputs concatenates the named files, with "-" standing for stdin. No
// names means stdin alone.
func openInputs(stdin io.Reader, names []string) (io.Reader, func(), error) {
	if len(names) == 0 {
		return stdin, func() {}, nil
	}

	var (
		readers []io.Reader
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for _, name := range names {
		if name == "-" {
			readers = append(readers, stdin)
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	return io.MultiReader(readers...), closeAll, nil
}
