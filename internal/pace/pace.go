// Package pace emits newline-delimited input at a rate enforced by a
// ratelimit.Waiter. Each line is one event: a worker waits for admission,
// then writes the line.
package pace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1024 * 1024

// Waiter blocks until the next event may proceed.
type Waiter interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Options controls a Run.
type Options struct {
	// Workers is the number of concurrent emitters. With one worker lines
	// are written in input order. Zero means one.
	Workers int
}

// Stats summarises a Run.
type Stats struct {
	Lines      int64
	TotalDelay time.Duration
	MaxDelay   time.Duration
}

// Run copies lines from in to out, waiting on w before each line. It returns
// when the input is exhausted, a write fails or ctx ends.
func Run(ctx context.Context, in io.Reader, out io.Writer, w Waiter, opts Options) (Stats, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan string, workers)

	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		return nil
	})

	var (
		mu    sync.Mutex
		stats Stats
	)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			for line := range lines {
				delay, err := w.Wait(ctx)
				if err != nil {
					return err
				}

				mu.Lock()
				_, err = io.WriteString(out, line+"\n")
				if err == nil {
					stats.Lines++
					stats.TotalDelay += delay
					if delay > stats.MaxDelay {
						stats.MaxDelay = delay
					}
				}
				mu.Unlock()
				if err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}

				if delay > 0 {
					slog.Debug("Line paced", "worker", worker, "delay", delay)
				}
			}
			return nil
		})
	}

	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return stats, err
}
