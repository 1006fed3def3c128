package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/platform/health"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware/request"
	"consentry/pkg/requestcontext"
)

type stubRoutes struct{}

func (stubRoutes) Register(r chi.Router) {
	r.Post("/gdpr/export", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
			"requestId": requestcontext.RequestID(r.Context()),
			"now":       requestcontext.Now(r.Context()).Format(time.RFC3339),
		})
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	fixed := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	return NewRouter(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  request.NewMetrics(reg),
		Gatherer: reg,
		Now:      func() time.Time { return fixed },
		Health:   health.New("test"),
		API:      []Registrar{stubRoutes{}},
	}), reg
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gdpr/export", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"method_not_allowed","error_description":"method not allowed"}`, rec.Body.String())
}

func TestRouterNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_found"`)
}

func TestRouterRequestContext(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/gdpr/export", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"requestId":"req-42","now":"2025-05-10T08:00:00Z"}`, rec.Body.String())
}

func TestRouterRejectsNonJSONBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/gdpr/export", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouterRecoversPanics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, reg := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/gdpr/export", strings.NewReader(`{}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	count, err := testutil.GatherAndCount(reg, "consentry_http_request_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `endpoint="/gdpr/export"`)
}
