package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"consentry/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis down")
}

func serve(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/gdpr/export", nil)
	ctx := requestcontext.WithClientIP(requestcontext.WithTime(req.Context(), t0), ip)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := New(NewInMemoryStore(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithMetrics(m))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	h := l.Middleware(Rule{Class: "gdpr_request", Limit: 2, Window: time.Hour})(ok)

	rec := serve(h, "10.0.0.1")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	serve(h, "10.0.0.1")
	rec = serve(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate_limit_exceeded","error_description":"Too many requests from this address. Please try again later."}`, rec.Body.String())

	rec = serve(h, "10.0.0.2")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Decisions.WithLabelValues("gdpr_request", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("gdpr_request", "rejected")))
}

func TestMiddlewareFailsOpen(t *testing.T) {
	l := New(failingStore{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := serve(l.Middleware(Rule{Class: "gdpr_request", Limit: 1, Window: time.Minute})(ok), "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
