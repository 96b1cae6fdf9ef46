// Package requesttime pins a single "now" per HTTP request so every budget
// check, window comparison, and audit timestamp inside the request agrees.
package requesttime

import (
	"net/http"
	"time"

	"kanon/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context for consistent time references throughout the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
