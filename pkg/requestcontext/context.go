// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by middleware and consumed by services. Keeping this package
// free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	requesterID := requestcontext.RequesterID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRequesterID(ctx, requesterID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "kanon/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	requesterIDKey   struct{}
	requesterTierKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// WithRequesterID stores the authenticated requester ID.
func WithRequesterID(ctx context.Context, requesterID id.RequesterID) context.Context {
	return context.WithValue(ctx, requesterIDKey{}, requesterID)
}

// RequesterID returns the authenticated requester ID, or the zero value when
// the request is unauthenticated.
func RequesterID(ctx context.Context) id.RequesterID {
	v, _ := ctx.Value(requesterIDKey{}).(id.RequesterID)
	return v
}

// WithRequesterTier stores the requester's authorization tier claim.
func WithRequesterTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, requesterTierKey{}, tier)
}

// RequesterTier returns the requester's tier claim, or "" when absent.
// Absence is meaningful: the decision engine treats it as uncertainty.
func RequesterTier(ctx context.Context) string {
	v, _ := ctx.Value(requesterTierKey{}).(string)
	return v
}

// WithRequestID stores the correlation ID for the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation ID, or "" when absent.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithTime pins the request time, letting tests control the clock seen by
// services that call Now.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
