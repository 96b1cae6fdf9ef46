package handler

import (
	"time"

	"kanon/internal/pairwise"
)

// BudgetResponse is the HTTP representation of a pairwise budget.
type BudgetResponse struct {
	DataSubjectID string    `json:"data_subject_id"`
	RequesterID   string    `json:"requester_id"`
	Allocated     string    `json:"allocated"`
	Consumed      string    `json:"consumed"`
	Remaining     string    `json:"remaining"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromBudget converts a pairwise budget to its HTTP representation.
func FromBudget(b pairwise.Budget) BudgetResponse {
	return BudgetResponse{
		DataSubjectID: b.Key.DataSubjectID.String(),
		RequesterID:   b.Key.RequesterID.String(),
		Allocated:     b.Allocated.String(),
		Consumed:      b.Consumed.String(),
		Remaining:     b.Remaining().String(),
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// QueryRecordResponse is one charged query.
type QueryRecordResponse struct {
	ID        string    `json:"id"`
	QueryHash string    `json:"query_hash"`
	QueryType string    `json:"query_type,omitempty"`
	Cost      string    `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// FromQueryRecords converts query records to their HTTP representation.
func FromQueryRecords(records []pairwise.QueryRecord) []QueryRecordResponse {
	out := make([]QueryRecordResponse, len(records))
	for i, record := range records {
		out[i] = QueryRecordResponse{
			ID:        record.ID,
			QueryHash: record.QueryHash,
			QueryType: record.QueryType,
			Cost:      record.Cost.String(),
			CreatedAt: record.CreatedAt,
		}
	}
	return out
}
