package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gdprhandler "consentry/internal/gdpr/handler"
	"consentry/internal/platform/config"
	"consentry/internal/ratelimit"
)

const rateSweepInterval = 5 * time.Minute

// requestLimiter is the submission limiter plus the sweep its store needs.
type requestLimiter struct {
	middleware func(http.Handler) http.Handler
	sweep      func(ctx context.Context) error
}

// newRequestLimiter uses shared when set, otherwise counts in process memory.
// It returns nil when limiting is disabled.
func newRequestLimiter(cfg config.RateLimitConfig, shared ratelimit.Store, log *slog.Logger) *requestLimiter {
	if cfg.Limit == 0 {
		log.Warn("rate limiting of GDPR requests is disabled")
		return nil
	}

	rl := &requestLimiter{}
	store := shared
	if store == nil {
		mem := ratelimit.NewInMemoryStore()
		store = mem
		rl.sweep = func(ctx context.Context) error {
			tick := time.NewTicker(rateSweepInterval)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-tick.C:
					if n := mem.Sweep(now); n > 0 {
						log.DebugContext(ctx, "swept rate limit buckets", "count", n)
					}
				}
			}
		}
	}

	limiter := ratelimit.New(store,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimit.NewMetrics(nil)),
	)
	rl.middleware = limiter.Middleware(ratelimit.Rule{
		Class:  "gdpr_request",
		Limit:  cfg.Limit,
		Window: cfg.Window,
	})
	return rl
}

func (rl *requestLimiter) options() []gdprhandler.Option {
	if rl == nil {
		return nil
	}
	return []gdprhandler.Option{gdprhandler.WithRequestLimit(rl.middleware)}
}
