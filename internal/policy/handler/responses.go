package handler

import (
	"time"

	"kanon/internal/policy"
)

// DecisionResponse is the HTTP response for POST /policy/evaluate.
type DecisionResponse struct {
	Decision    string   `json:"decision"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Message     string   `json:"message"`
}

// FromDecision converts an engine decision to its HTTP representation.
func FromDecision(d policy.PolicyDecision) DecisionResponse {
	return DecisionResponse{
		Decision:    d.Type(),
		ReasonCodes: d.ReasonCodes,
		Conditions:  d.Conditions,
		Message:     d.Message,
	}
}

// ReceiptResponse is one recorded decision.
type ReceiptResponse struct {
	ID            string    `json:"id"`
	Decision      string    `json:"decision"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	ReasonCodes   []string  `json:"reason_codes,omitempty"`
	PolicyVersion string    `json:"policy_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromReceipts converts decision receipts to their HTTP representation.
func FromReceipts(receipts []policy.DecisionReceipt) []ReceiptResponse {
	out := make([]ReceiptResponse, len(receipts))
	for i, receipt := range receipts {
		out[i] = ReceiptResponse{
			ID:            receipt.ID,
			Decision:      receipt.DecisionType,
			CampaignID:    receipt.CampaignID,
			ReasonCodes:   receipt.ReasonCodes,
			PolicyVersion: receipt.PolicyVersion,
			CreatedAt:     receipt.CreatedAt,
		}
	}
	return out
}
