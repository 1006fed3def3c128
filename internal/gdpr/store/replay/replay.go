// Package replay records verification tokens that have been redeemed so a
// confirmation link works once.
package replay

import (
	"context"
	"time"
)

// Guard marks token keys as used.
type Guard interface {
	// MarkUsed records key for ttl. It returns false when key was already
	// recorded and has not yet expired.
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
