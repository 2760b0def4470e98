package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/keyxmakerx/vpanel/internal/metrics"
	"github.com/keyxmakerx/vpanel/internal/plugins/auth"
	"github.com/keyxmakerx/vpanel/internal/ratelimit"
)

// Job names.
const (
	SessionReapJob  = "session_reap"
	LimiterSweepJob = "limiter_sweep"
)

// ReapSessions returns a job that deletes sessions whose expiry has passed.
func ReapSessions(store auth.SessionStore, m *metrics.Metrics) Func {
	return func(ctx context.Context, now time.Time) error {
		n, err := store.ReapExpired(ctx, now)
		if err != nil {
			return err
		}
		m.ObserveReaped(n)
		if n > 0 {
			slog.Info("reaped expired sessions", slog.Int("count", n))
		}
		return nil
	}
}

// SweepLimiters returns a job that drops elapsed windows from every limiter.
func SweepLimiters(limiters map[string]*ratelimit.Limiter) Func {
	return func(_ context.Context, now time.Time) error {
		for name, l := range limiters {
			if n := l.Sweep(now); n > 0 {
				slog.Debug("swept rate limit windows",
					slog.String("limiter", name),
					slog.Int("count", n),
				)
			}
		}
		return nil
	}
}
