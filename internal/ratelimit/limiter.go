// Package ratelimit converts event timestamps into the delay a caller must
// observe to stay within a configured events-per-second rate. The core
// Limiter only computes delays; Waiter, KeyedLimiter and Middleware build
// sleeping, per-key and HTTP behaviour on top of it.
package ratelimit

import (
	"math"
	"math/bits"
	"sync"
	"time"
)

// Admitter is the admission contract. Implementations must be safe for
// concurrent use.
type Admitter interface {
	// Admit records an event at ts and returns how long the caller must
	// wait before the event is compliant with the rate.
	Admit(ts time.Time) time.Duration
}

// AdmitFunc adapts an ordinary function to the Admitter interface.
type AdmitFunc func(ts time.Time) time.Duration

// Admit calls f(ts).
func (f AdmitFunc) Admit(ts time.Time) time.Duration {
	return f(ts)
}

// Limiter accounts admitted events in rate units. Every event adds one unit
// and units decay at rate per whole elapsed second. Events are delayed once
// the outstanding load exceeds the burst capacity (rate * window).
type Limiter struct {
	rate     int64
	window   int64
	capacity int64

	mu      sync.Mutex
	count   int64
	last    time.Time
	started bool
}

// New creates a Limiter allowing ratePerSecond events per second, with
// windowSeconds of burst allowance. A window of zero enforces strict pacing.
func New(ratePerSecond, windowSeconds int) (*Limiter, error) {
	if err := validate(ratePerSecond, windowSeconds); err != nil {
		return nil, err
	}
	return &Limiter{
		rate:     int64(ratePerSecond),
		window:   int64(windowSeconds),
		capacity: int64(ratePerSecond) * int64(windowSeconds),
	}, nil
}

func validate(ratePerSecond, windowSeconds int) error {
	if ratePerSecond <= 0 {
		return &ConfigurationError{Field: "rate_per_second", Value: int64(ratePerSecond), Reason: "must be positive"}
	}
	if windowSeconds < 0 {
		return &ConfigurationError{Field: "window_seconds", Value: int64(windowSeconds), Reason: "must not be negative"}
	}
	if windowSeconds > 0 && int64(ratePerSecond) > math.MaxInt64/int64(windowSeconds) {
		return &ConfigurationError{Field: "window_seconds", Value: int64(windowSeconds), Reason: "capacity overflows"}
	}
	return nil
}

// Rate returns the configured events per second.
func (l *Limiter) Rate() int { return int(l.rate) }

// Window returns the configured amortization window in seconds.
func (l *Limiter) Window() int { return int(l.window) }

// Capacity returns the number of events that may accumulate before delays
// are imposed.
func (l *Limiter) Capacity() int { return int(l.capacity) }

// Admit accounts for one event at ts and returns the delay required before
// the event is compliant. Timestamps need not be increasing: a timestamp at
// or before the current reference point applies no decay.
func (l *Limiter) Admit(ts time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		l.started = true
		l.last = ts
	} else {
		l.decayLocked(ts)
	}

	var delay time.Duration
	if l.count > l.capacity {
		delay = backlogDelay(l.count-l.capacity, l.rate)
	}
	if l.count < math.MaxInt64 {
		l.count++
	}

	return delay
}

// backlogDelay returns excess/rate seconds, floored to the microsecond and
// capped at the largest representable Duration.
func backlogDelay(excess, rate int64) time.Duration {
	hi, lo := bits.Mul64(uint64(excess), 1_000_000)
	if hi >= uint64(rate) {
		return math.MaxInt64
	}
	micros, _ := bits.Div64(hi, lo, uint64(rate))
	if micros > math.MaxInt64/uint64(time.Microsecond) {
		return math.MaxInt64
	}
	return time.Duration(micros) * time.Microsecond
}

// covers reports whether seconds of decay at rate release at least count
// units.
func covers(seconds, count, rate int64) bool {
	needed := count / rate
	if count%rate != 0 {
		needed++
	}
	return seconds >= needed
}

// decayLocked releases rate units for every whole second between last and
// ts. Only the whole seconds are consumed from the gap, so a fractional
// remainder carries over to the next call.
func (l *Limiter) decayLocked(ts time.Time) {
	delta := ts.Sub(l.last)
	if delta <= 0 {
		return
	}
	seconds := int64(delta / time.Second)
	l.last = l.last.Add(time.Duration(seconds) * time.Second)
	if covers(seconds, l.count, l.rate) {
		l.count = 0
		return
	}
	l.count -= seconds * l.rate
}

// drained reports whether the outstanding load would have fully decayed by
// ts. It does not mutate the limiter.
func (l *Limiter) drained(ts time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.count == 0 {
		return true
	}
	delta := ts.Sub(l.last)
	if delta <= 0 {
		return false
	}
	return covers(int64(delta/time.Second), l.count, l.rate)
}
