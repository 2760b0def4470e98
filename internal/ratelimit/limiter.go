// Package ratelimit implements an in-memory fixed-window request counter
// keyed by client identity. A Limiter is owned by the application: it is
// created once at startup, shared by the middleware that guards an endpoint,
// and lost on restart. It is an abuse deterrent, not a security boundary.
package ratelimit

import (
	"sync"
	"time"
)

// Config is the recognized option set for a Limiter.
type Config struct {
	// Window is the duration of each counting window.
	Window time.Duration

	// MaxRequests is the number of requests allowed per window per client.
	MaxRequests int
}

// DefaultConfig is the reporting endpoint's limit: 120 requests per minute.
var DefaultConfig = Config{Window: 60 * time.Second, MaxRequests: 120}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the key's current window ends.
	ResetAt time.Time
}

// RetryAfter returns how long a rejected client should wait, rounded up to
// whole seconds and never less than one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	secs := (wait + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in discrete, non-overlapping windows.
// It is safe for concurrent use: every check is a read-modify-write under
// one mutex, so two concurrent requests can never both take the last slot.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a Limiter. Non-positive fields fall back to DefaultConfig.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig.Window
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultConfig.MaxRequests
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Config returns the limiter's effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Check records one request for key and reports whether it is allowed.
// A missing or elapsed window restarts at count 1; a full window rejects
// without incrementing.
func (l *Limiter) Check(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.windows[key] = w
		return Decision{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetAt: w.resetAt}
	}

	if w.count >= l.cfg.MaxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.cfg.MaxRequests - w.count, ResetAt: w.resetAt}
}

// Sweep drops every window that has ended by now and returns how many were
// removed. Expired windows are already ignored by Check; sweeping only
// bounds memory.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
