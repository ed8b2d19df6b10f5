package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps per-key call timestamps in process memory. Suitable
// for single-instance deployments; multi-instance setups need the Redis
// limiter for a shared window.
type MemoryLimiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	cfg   Config
	now   func() time.Time
}

// NewMemoryLimiter creates an in-process sliding-window limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		calls: make(map[string][]time.Time),
		cfg:   cfg,
		now:   time.Now,
	}
}

// IsRateLimited prunes timestamps older than the window, then admits the
// call if the remaining count is under budget.
func (l *MemoryLimiter) IsRateLimited(_ context.Context, key string) bool {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.calls[key][:0]
	for _, ts := range l.calls[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.cfg.Requests {
		l.calls[key] = kept
		return true
	}

	l.calls[key] = append(kept, now)
	return false
}
