// Package ratelimit caps how often one client may hit an endpoint class.
// Counting uses a sliding window kept in memory or in Redis.
package ratelimit

import (
	"context"
	"time"
)

// Rule is the limit applied to one endpoint class.
type Rule struct {
	// Class names the endpoints sharing a budget, e.g. "gdpr_request".
	Class  string
	Limit  int
	Window time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration
}

// Store counts requests per key within a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func retryAfter(allowed bool, now, resetAt time.Time) time.Duration {
	if allowed || !resetAt.After(now) {
		return 0
	}
	return resetAt.Sub(now)
}
