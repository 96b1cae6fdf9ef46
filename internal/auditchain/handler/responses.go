package handler

import (
	"time"

	"kanon/internal/auditchain"
)

// ReceiptResponse is the HTTP representation of a chained receipt.
type ReceiptResponse struct {
	ID           string    `json:"id"`
	EventType    string    `json:"event_type"`
	ActorID      string    `json:"actor_id"`
	ActorType    string    `json:"actor_type"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	DetailsHash  string    `json:"details_hash"`
	PreviousHash string    `json:"previous_hash"`
	ReceiptHash  string    `json:"receipt_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromReceipt converts a receipt to its HTTP representation.
func FromReceipt(r auditchain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:           r.ID,
		EventType:    string(r.EventType),
		ActorID:      r.ActorID,
		ActorType:    string(r.ActorType),
		ResourceID:   r.ResourceID,
		ResourceType: r.ResourceType,
		DetailsHash:  r.DetailsHash,
		PreviousHash: r.PreviousHash,
		ReceiptHash:  r.ReceiptHash,
		CreatedAt:    r.CreatedAt,
	}
}

// FromReceipts converts receipts to their HTTP representation.
func FromReceipts(receipts []auditchain.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, len(receipts))
	for i, r := range receipts {
		out[i] = FromReceipt(r)
	}
	return out
}

// VerifyResponse is the HTTP response for GET /audit/verify.
type VerifyResponse struct {
	Valid       bool   `json:"valid"`
	Length      int    `json:"length"`
	FirstBroken string `json:"first_broken,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ReceiptCheckResponse is the HTTP response for per-receipt verification.
type ReceiptCheckResponse struct {
	ReceiptID string `json:"receipt_id"`
	HashValid bool   `json:"hash_valid"`
	LinkValid bool   `json:"link_valid"`
	Valid     bool   `json:"valid"`
}
