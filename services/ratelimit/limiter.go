// Package ratelimit provides sliding-window request throttling keyed by
// client identity, with in-memory and Redis-backed implementations.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a keyed caller has exhausted its window budget.
// Implementations count the current call when admitting it, so a budget of
// n admits exactly n calls per window.
type Limiter interface {
	// IsRateLimited reports whether the call identified by key must be
	// rejected. Backend failures fail open: throttling is a protective
	// layer, not an admission-control one.
	IsRateLimited(ctx context.Context, key string) bool
}

// Config holds the window parameters shared by all implementations.
type Config struct {
	Window   time.Duration // sliding window length
	Requests int           // admitted calls per window
}
