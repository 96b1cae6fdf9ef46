package pairwise

import (
	"context"
	"time"
)

// Store persists pair budgets and their query logs.
//
// Create must fail with sentinel.ErrConflict when the pair already has a
// budget. Update must fail with sentinel.ErrVersionConflict on a stale
// version. Different pairs never contend with each other.
type Store interface {
	Create(ctx context.Context, budget Budget) error
	Get(ctx context.Context, key PairKey) (Budget, error)
	Update(ctx context.Context, budget Budget) (Budget, error)

	AppendQuery(ctx context.Context, record QueryRecord) error
	// ListQueriesSince returns the pair's records with CreatedAt >= since,
	// oldest first.
	ListQueriesSince(ctx context.Context, key PairKey, since time.Time) ([]QueryRecord, error)
}
