package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// entry holds a key's limiter and the timestamp of its latest admission.
// inflight counts admissions that fetched the entry but have not finished;
// such entries are never evicted.
type entry struct {
	limiter  *Limiter
	lastSeen time.Time
	inflight atomic.Int32
}

// KeyedLimiter keeps an independent Limiter per key, all sharing one
// configuration. A background goroutine evicts keys that have been idle for
// 2x the cleanup interval and whose backlog has fully decayed.
type KeyedLimiter struct {
	rate            int
	window          int
	cleanupInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	done    chan struct{}
	closed  bool
}

// NewKeyedLimiter creates a KeyedLimiter and starts its eviction goroutine.
// Call Close to stop it.
func NewKeyedLimiter(ratePerSecond, windowSeconds int, cleanupInterval time.Duration) (*KeyedLimiter, error) {
	if err := validate(ratePerSecond, windowSeconds); err != nil {
		return nil, err
	}
	if cleanupInterval <= 0 {
		return nil, &ConfigurationError{Field: "cleanup_interval", Value: int64(cleanupInterval), Reason: "must be positive"}
	}

	k := &KeyedLimiter{
		rate:            ratePerSecond,
		window:          windowSeconds,
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]*entry),
		done:            make(chan struct{}),
	}
	go k.cleanup()
	return k, nil
}

// Rate returns the per-key events per second.
func (k *KeyedLimiter) Rate() int { return k.rate }

// Admit accounts for one event under key at ts and returns the delay
// required for it.
func (k *KeyedLimiter) Admit(key string, ts time.Time) time.Duration {
	k.mu.Lock()
	e, exists := k.entries[key]
	if !exists {
		// Configuration was validated in NewKeyedLimiter.
		l, _ := New(k.rate, k.window)
		e = &entry{limiter: l}
		k.entries[key] = e
	}
	if ts.After(e.lastSeen) {
		e.lastSeen = ts
	}
	e.inflight.Add(1)
	k.mu.Unlock()
	defer e.inflight.Add(-1)

	return e.limiter.Admit(ts)
}

// For returns an Admitter bound to key.
func (k *KeyedLimiter) For(key string) Admitter {
	return AdmitFunc(func(ts time.Time) time.Duration {
		return k.Admit(key, ts)
	})
}

// Len returns the number of keys currently tracked.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Close stops the background eviction goroutine. It is safe to call more
// than once.
func (k *KeyedLimiter) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.closed {
		k.closed = true
		close(k.done)
	}
}

func (k *KeyedLimiter) cleanup() {
	ticker := time.NewTicker(k.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.done:
			return
		case <-ticker.C:
			k.evictStale(time.Now())
		}
	}
}

// evictStale removes entries not seen since now - 2x the cleanup interval
// whose limiter holds no outstanding load at now and that no Admit call is
// currently using.
func (k *KeyedLimiter) evictStale(now time.Time) {
	cutoff := now.Add(-2 * k.cleanupInterval)
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, e := range k.entries {
		if e.inflight.Load() == 0 && e.lastSeen.Before(cutoff) && e.limiter.drained(now) {
			delete(k.entries, key)
		}
	}
}
