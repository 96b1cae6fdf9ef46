// Package ports defines the decision engine's view of its collaborators.
// Interfaces live with the consumer so the engine can be tested against
// mocks without touching the real ledgers.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"kanon/internal/cohort"
	"kanon/internal/linkage"
	"kanon/internal/pairwise"
	"kanon/pkg/domain"
)

// CohortPort classifies eligibility criteria against a k-minimum.
type CohortPort interface {
	Check(ctx context.Context, criteria cohort.Criteria, kMin int) (cohort.CheckResult, error)
}

// LinkagePort scores recent query history for deanonymization risk.
type LinkagePort interface {
	AssessRisk(ctx context.Context, requesterID domain.RequesterID, queries []linkage.Query) (linkage.Assessment, error)
}

// PairwisePort exposes the pair ledger's query history and suspension state.
type PairwisePort interface {
	CheckBlocked(ctx context.Context, key pairwise.PairKey) (bool, error)
	RecentQueries(ctx context.Context, key pairwise.PairKey) ([]pairwise.QueryRecord, error)
}

// ConsentPort reports whether a consent contract authorizes access at a
// point in time.
type ConsentPort interface {
	ValidAt(ctx context.Context, id domain.ConsentID, at time.Time) (bool, error)
}
