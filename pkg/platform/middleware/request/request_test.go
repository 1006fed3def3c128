package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRequestID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		reused bool
	}{
		{"no header", "", false},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"dots and underscores", "edge.lb_01-req", true},
		{"exactly max length", strings.Repeat("a", MaxRequestIDLength), true},
		{"over max length", strings.Repeat("a", MaxRequestIDLength+1), false},
		{"newline injection", "req-1\ninjected=true", false},
		{"spaces", "req 1", false},
		{"quote", `req"1`, false},
		{"non ascii", "réq-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = requestcontext.RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/gdpr/export", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
			if tc.reused {
				assert.Equal(t, tc.header, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "expected a generated UUID, got %q", seen)
		})
	}
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	h := Recovery(slog.New(slog.NewTextHandler(&logs, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("smtp password is hunter2")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gdpr/export/confirm", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "hunter2")
}

func TestRecoveryRepanicsOnAbort(t *testing.T) {
	h := Recovery(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLogger(t *testing.T) {
	cases := []struct {
		path    string
		status  int
		wantLog string
	}{
		{"/gdpr/export", http.StatusAccepted, "level=INFO"},
		{"/gdpr/export/confirm", http.StatusBadRequest, "level=WARN"},
		{"/gdpr/delete-request", http.StatusInternalServerError, "level=ERROR"},
		{"/health/ready", http.StatusOK, ""},
		{"/health/ready", http.StatusServiceUnavailable, "level=ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			var logs bytes.Buffer
			h := Logger(slog.New(slog.NewTextHandler(&logs, nil)))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req = req.WithContext(requestcontext.WithClientIP(req.Context(), "203.0.113.77"))
			h.ServeHTTP(httptest.NewRecorder(), req)

			if tc.wantLog == "" {
				assert.Empty(t, logs.String())
				return
			}
			assert.Contains(t, logs.String(), tc.wantLog)
			assert.NotContains(t, logs.String(), "203.0.113.77")
		})
	}
}

func TestContentTypeJSON(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	cases := []struct {
		name   string
		method string
		ct     string
		want   int
	}{
		{"json", http.MethodPost, "application/json", http.StatusAccepted},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusAccepted},
		{"missing content type", http.MethodPost, "", http.StatusAccepted},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"malformed media type", http.MethodPut, "application/", http.StatusUnsupportedMediaType},
		{"GET not checked", http.MethodGet, "text/plain", http.StatusAccepted},
		{"DELETE not checked", http.MethodDelete, "text/plain", http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/gdpr/export", nil)
			if tc.ct != "" {
				req.Header.Set("Content-Type", tc.ct)
			}
			rec := httptest.NewRecorder()
			ContentTypeJSON(next).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnsupportedMediaType {
				assert.Contains(t, rec.Body.String(), "invalid_content_type")
			}
		})
	}
}

func TestLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := Latency(m, func(*http.Request) string { return "/gdpr/export/confirm" })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/gdpr/export/confirm?token=secret", nil))

	require.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))
	n, err := testutil.GatherAndCount(reg, "consentry_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	passthrough := Latency(nil, nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
