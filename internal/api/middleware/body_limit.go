package middleware

import "net/http"

// DefaultMaxBodyBytes is the default ceiling on a module call's parameter
// payload (512KB). Module calls pass structured parameters, not file
// uploads, so one flat limit covers every route.
const DefaultMaxBodyBytes = 512 * 1024

// MaxBodySize returns middleware that rejects request bodies over max
// bytes. A request with a nil Body is passed through; every other body is
// capped, whatever the method.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
