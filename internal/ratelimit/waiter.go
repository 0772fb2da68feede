package ratelimit

import (
	"context"
	"time"
)

// Waiter blocks callers for the delay an Admitter assigns to them.
type Waiter struct {
	admitter Admitter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithClock replaces time.Now as the source of admission timestamps.
func WithClock(now func() time.Time) WaiterOption {
	return func(w *Waiter) {
		w.now = now
	}
}

// WithSleeper replaces the context-aware timer used to wait out delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) WaiterOption {
	return func(w *Waiter) {
		w.sleep = sleep
	}
}

// NewWaiter creates a Waiter around the given Admitter.
func NewWaiter(a Admitter, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		admitter: a,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait admits one event at the current time and blocks for the returned
// delay. If ctx ends first, Wait returns ctx.Err(); the admitted unit is not
// refunded.
func (w *Waiter) Wait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	delay := w.admitter.Admit(w.now())
	if delay <= 0 {
		return 0, nil
	}

	if err := w.sleep(ctx, delay); err != nil {
		return delay, err
	}
	return delay, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
