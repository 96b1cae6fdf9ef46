package handler

import (
	"strings"

	"kanon/internal/prb"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
)

// AllocateRequest is the HTTP request body for POST /prb/campaigns/{campaignID}/allocate.
type AllocateRequest struct {
	RiskLevel int `json:"risk_level"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AllocateRequest) Validate() error {
	if r.RiskLevel < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "risk_level must be non-negative")
	}
	if r.RiskLevel > 10 {
		return dErrors.New(dErrors.CodeInvalidInput, "risk_level must be at most 10")
	}
	return nil
}

// Profile returns the risk profile derived from the request.
func (r *AllocateRequest) Profile() *prb.RiskProfile {
	return &prb.RiskProfile{RiskLevel: r.RiskLevel}
}

// ConsumeRequest is the HTTP request body for POST /prb/campaigns/{campaignID}/consume.
type ConsumeRequest struct {
	Cost          string `json:"cost"`
	TransformID   string `json:"transform_id"`
	OperationType string `json:"operation_type"`

	// Parsed values (populated by Validate)
	parsedCost domain.Risk
}

// Validate validates and parses the request.
func (r *ConsumeRequest) Validate() error {
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

	r.OperationType = strings.TrimSpace(r.OperationType)
	if r.OperationType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "operation_type is required")
	}
	r.TransformID = strings.TrimSpace(r.TransformID)
	return nil
}

// ParsedCost returns the validated cost.
func (r *ConsumeRequest) ParsedCost() domain.Risk {
	return r.parsedCost
}
