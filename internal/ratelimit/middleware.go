package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/privacy"
	"consentry/pkg/requestcontext"
)

// Limiter turns a Store into per-client HTTP middleware.
type Limiter struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Middleware enforces rule per client IP. A failing store lets requests
// through.
func (l *Limiter) Middleware(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := l.store.Allow(ctx, rule.Class+":"+ip, rule.Limit, rule.Window)
			if err != nil {
				l.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", rule.Class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				l.metrics.observe(rule.Class, "error")
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"class", rule.Class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				l.metrics.observe(rule.Class, "rejected")
				writeRateLimitExceeded(w, result)
				return
			}
			l.metrics.observe(rule.Class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result Result) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
	httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many requests from this address. Please try again later.",
	})
}
