package handler

import (
	"strings"
	"time"

	"kanon/internal/policy"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
)

// EvaluateRequest is the HTTP request body for POST /policy/evaluate. The
// requester's identity and tier come from the access token; the body names
// what is being requested.
type EvaluateRequest struct {
	ResourceType        string            `json:"resource_type"`
	Action              string            `json:"action"`
	CampaignID          string            `json:"campaign_id,omitempty"`
	DataSubjectID       string            `json:"data_subject_id,omitempty"`
	ConsentID           string            `json:"consent_id,omitempty"`
	ResourceSensitivity *string           `json:"resource_sensitivity,omitempty"`
	CohortCriteria      map[string]string `json:"cohort_criteria,omitempty"`
	KMin                int               `json:"k_min,omitempty"`
	WindowStart         *time.Time        `json:"window_start,omitempty"`
	WindowEnd           *time.Time        `json:"window_end,omitempty"`
}

// Validate bounds the request. Deliberately minimal: the engine itself turns
// missing or unknown inputs into denials, and the transport layer must not
// pre-empt those semantics.
func (r *EvaluateRequest) Validate() error {
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	r.Action = strings.TrimSpace(r.Action)
	if r.KMin < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "k_min must be non-negative")
	}
	if len(r.CohortCriteria) > 16 {
		return dErrors.New(dErrors.CodeInvalidInput, "cohort_criteria has too many keys")
	}
	return nil
}

// PolicyContext builds the engine input for the authenticated requester.
func (r *EvaluateRequest) PolicyContext(requesterID domain.RequesterID) policy.Context {
	return policy.Context{
		RequesterID:         requesterID.String(),
		ResourceType:        r.ResourceType,
		Action:              r.Action,
		CampaignID:          r.CampaignID,
		DataSubjectID:       r.DataSubjectID,
		ConsentID:           r.ConsentID,
		ResourceSensitivity: r.ResourceSensitivity,
		CohortCriteria:      r.CohortCriteria,
		KMin:                r.KMin,
		WindowStart:         r.WindowStart,
		WindowEnd:           r.WindowEnd,
	}
}
