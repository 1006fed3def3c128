package request

import "net/http"

// BodyLimit wraps the body in http.MaxBytesReader. Decoding an oversized
// body fails with *http.MaxBytesError, which handlers report as 400.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
