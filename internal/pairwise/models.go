// Package pairwise implements the per (data-subject, requester) consumption
// ledger. It throttles individual queries independently of any campaign: each
// pair carries its own budget, a per-query cost ceiling, and a query log used
// to spot repeated probing of the same subject.
package pairwise

import (
	"fmt"
	"time"

	"kanon/pkg/domain"
)

// Status is the lifecycle state of a pair budget.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExhausted Status = "EXHAUSTED"
	// StatusSuspended marks a pair blocked for suspected deanonymization
	// probing; consumption is refused until an operator intervenes.
	StatusSuspended Status = "SUSPENDED"
)

// PairKey identifies one (data-subject, requester) budget.
type PairKey struct {
	DataSubjectID domain.DataSubjectID
	RequesterID   domain.RequesterID
}

func (k PairKey) String() string {
	return fmt.Sprintf("%s:%s", k.DataSubjectID, k.RequesterID)
}

// IsValid reports whether both halves of the key are set.
func (k PairKey) IsValid() bool {
	return !k.DataSubjectID.IsNil() && !k.RequesterID.IsNil()
}

// Budget is one pair's consumption budget.
type Budget struct {
	Key       PairKey
	Allocated domain.Risk
	Consumed  domain.Risk
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is the budget still available for consumption.
func (b Budget) Remaining() domain.Risk {
	return b.Allocated - b.Consumed
}

// QueryRecord is one successfully charged query. Records exist if and only if
// their cost was deducted; a refused query leaves no record.
type QueryRecord struct {
	ID        string
	Key       PairKey
	QueryHash string
	QueryType string
	Cost      domain.Risk
	CreatedAt time.Time
}
