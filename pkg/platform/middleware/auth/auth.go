// Package auth authenticates requesters from bearer tokens and places their
// identity and tier in the request context.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"kanon/pkg/domain"
	"kanon/pkg/requestcontext"
)

// JWTValidator validates an access token and returns its claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the middleware needs from the validator.
type JWTClaims struct {
	RequesterID string
	Tier        string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token. On success the
// requester's identity and tier are available via requestcontext.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized,
					"unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized,
					"unauthorized", "Invalid or expired token")
				return
			}

			requesterID, err := domain.ParseRequesterID(claims.RequesterID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed requester id",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized,
					"unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithRequesterID(ctx, requesterID)
			ctx = requestcontext.WithRequesterTier(ctx, claims.Tier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
