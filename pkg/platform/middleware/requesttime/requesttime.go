// Package requesttime pins a single "now" for each HTTP request so token
// issuance, token verification and audit timestamps inside one request agree.
package requesttime

import (
	"net/http"
	"time"

	"consentry/pkg/requestcontext"
)

// Middleware captures time.Now at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock captures now() at the start of each request. Feature tests pass a
// controllable clock to move across token expiry windows.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
