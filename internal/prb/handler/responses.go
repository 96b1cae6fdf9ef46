package handler

import (
	"time"

	"kanon/internal/prb"
)

// BudgetResponse is the HTTP representation of a campaign budget.
type BudgetResponse struct {
	CampaignID     string     `json:"campaign_id"`
	Allocated      string     `json:"allocated"`
	Consumed       string     `json:"consumed"`
	Remaining      string     `json:"remaining"`
	Status         string     `json:"status"`
	RulesetVersion string     `json:"ruleset_version"`
	CreatedAt      time.Time  `json:"created_at"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
}

// FromBudget converts a domain budget to its HTTP representation.
func FromBudget(b prb.Budget) BudgetResponse {
	return BudgetResponse{
		CampaignID:     b.CampaignID.String(),
		Allocated:      b.Allocated.String(),
		Consumed:       b.Consumed.String(),
		Remaining:      b.Remaining().String(),
		Status:         string(b.Status),
		RulesetVersion: b.RulesetVersion,
		CreatedAt:      b.CreatedAt,
		LockedAt:       b.LockedAt,
	}
}

// ConsumptionResponse is one consumption log entry.
type ConsumptionResponse struct {
	ID             string    `json:"id"`
	TransformID    string    `json:"transform_id,omitempty"`
	OperationType  string    `json:"operation_type"`
	Cost           string    `json:"cost"`
	RemainingAfter string    `json:"remaining_after"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromConsumptions converts consumption entries to their HTTP representation.
func FromConsumptions(entries []prb.ConsumptionEntry) []ConsumptionResponse {
	out := make([]ConsumptionResponse, len(entries))
	for i, e := range entries {
		out[i] = ConsumptionResponse{
			ID:             e.ID,
			TransformID:    e.TransformID,
			OperationType:  e.OperationType,
			Cost:           e.Cost.String(),
			RemainingAfter: e.RemainingAfter.String(),
			CreatedAt:      e.CreatedAt,
		}
	}
	return out
}
