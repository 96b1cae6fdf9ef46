// Package prb implements the per-campaign Privacy Risk Budget ledger.
// A campaign's budget moves through allocate, lock, consume; once locked the
// allocation is immutable and only consumption can change the record.
package prb

import (
	"time"

	"kanon/pkg/domain"
)

// Status is the lifecycle state of a budget.
type Status string

const (
	StatusAllocated Status = "ALLOCATED"
	StatusLocked    Status = "LOCKED"
	StatusExhausted Status = "EXHAUSTED"
)

// RiskProfile scales the base allocation for riskier campaigns.
type RiskProfile struct {
	// RiskLevel is a small non-negative integer; each level adds half the
	// base budget on top.
	RiskLevel int
}

// Budget is one campaign's privacy risk budget. Consumed never exceeds
// Allocated and Remaining is always their difference.
type Budget struct {
	ID             string
	CampaignID     domain.CampaignID
	Allocated      domain.Risk
	Consumed       domain.Risk
	Status         Status
	RulesetVersion string
	// Version supports optimistic concurrency in the stores.
	Version   int64
	CreatedAt time.Time
	LockedAt  *time.Time
}

// Remaining is the budget still available for consumption.
func (b Budget) Remaining() domain.Risk {
	return b.Allocated - b.Consumed
}

// ConsumptionEntry is one row of the append-only consumption log.
type ConsumptionEntry struct {
	ID             string
	CampaignID     domain.CampaignID
	TransformID    string
	OperationType  string
	Cost           domain.Risk
	RemainingAfter domain.Risk
	CreatedAt      time.Time
}
