// Package request assigns each request a unique id for log and audit
// correlation.
package request

import (
	"net/http"

	"kanon/pkg/ids"
	"kanon/pkg/requestcontext"
)

// HeaderRequestID is the response header carrying the request id.
const HeaderRequestID = "X-Request-Id"

// Middleware assigns the inbound request an id, honoring one supplied by a
// trusted upstream proxy, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = ids.New()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
