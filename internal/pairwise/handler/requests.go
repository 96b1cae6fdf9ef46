package handler

import (
	"strings"

	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
)

// AllocateRequest is the HTTP request body for POST /pairwise/allocate.
type AllocateRequest struct {
	DataSubjectID string `json:"data_subject_id"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AllocateRequest) Validate() error {
	r.DataSubjectID = strings.TrimSpace(r.DataSubjectID)
	if r.DataSubjectID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "data_subject_id is required")
	}
	return nil
}

// ConsumeRequest is the HTTP request body for POST /pairwise/consume.
type ConsumeRequest struct {
	DataSubjectID string `json:"data_subject_id"`
	QueryHash     string `json:"query_hash"`
	QueryType     string `json:"query_type"`
	Cost          string `json:"cost"`

	// Parsed values (populated by Validate)
	parsedCost domain.Risk
}

// Validate validates and parses the request.
func (r *ConsumeRequest) Validate() error {
	r.DataSubjectID = strings.TrimSpace(r.DataSubjectID)
	if r.DataSubjectID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "data_subject_id is required")
	}

	r.QueryHash = strings.TrimSpace(r.QueryHash)
	if r.QueryHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "query_hash is required")
	}
	if len(r.QueryHash) > 128 {
		return dErrors.New(dErrors.CodeInvalidInput, "query_hash must be at most 128 characters")
	}

	r.Cost = strings.TrimSpace(r.Cost)
	if r.Cost == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "cost is required")
	}
	cost, err := domain.ParseRisk(r.Cost)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "cost must be a decimal risk amount")
	}
	if cost <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "cost must be positive")
	}
	r.parsedCost = cost

	r.QueryType = strings.TrimSpace(r.QueryType)
	return nil
}

// ParsedCost returns the validated cost.
func (r *ConsumeRequest) ParsedCost() domain.Risk {
	return r.parsedCost
}
