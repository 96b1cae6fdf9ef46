// Package policy implements the fail-closed decision engine. Every
// invocation terminates in an explicit ALLOW or DENY; uncertainty, rule
// failure, and even programming errors all resolve to DENY with
// machine-readable reason codes. Denial is a value, never an error.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Decision is the terminal verdict of one evaluation.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionDeny  Decision = "DENY"
)

// Reason codes, in the vocabulary callers and compliance tooling match on.
const (
	ReasonMissingRequesterID  = "MISSING_REQUESTER_ID"
	ReasonMissingResourceType = "MISSING_RESOURCE_TYPE"
	ReasonMissingAction       = "MISSING_ACTION"
	ReasonUncertaintyDetected = "UNCERTAINTY_DETECTED"
	ReasonUnknownTier         = "UNKNOWN_REQUESTER_TIER"
	ReasonUnknownSensitivity  = "UNKNOWN_RESOURCE_SENSITIVITY"
	ReasonUnknownConsent      = "UNKNOWN_CONSENT_STATE"
	ReasonUnknownTimeWindow   = "UNKNOWN_TIME_WINDOW"
	ReasonUnknownCriteria     = "UNKNOWN_COHORT_CRITERIA"
	ReasonTierFailed          = "TIER_CHECK_FAILED"
	ReasonConsentFailed       = "CONSENT_CHECK_FAILED"
	ReasonTimeWindowFailed    = "TIME_WINDOW_FAILED"
	ReasonCohortTooSmall      = "COHORT_TOO_SMALL"
	ReasonBroadeningFailed    = "COHORT_BROADENING_FAILED"
	ReasonLinkageBlocked      = "LINKAGE_BLOCKED"
	ReasonPairSuspended       = "PAIR_SUSPENDED"
	ReasonEvaluationError     = "EVALUATION_ERROR"
	ReasonCatastrophicFailure = "CATASTROPHIC_FAILURE"
)

// ConditionBroadenedCohort formats the condition attached when a cohort was
// broadened to meet the threshold.
func ConditionBroadenedCohort(size int) string {
	return fmt.Sprintf("BROADENED_COHORT:%d", size)
}

// Requester authorization tiers, weakest first.
const (
	TierStandard = "STANDARD"
	TierElevated = "ELEVATED"
	TierAdmin    = "ADMIN"
)

// Resource sensitivity classes.
const (
	SensitivityPublic     = "PUBLIC"
	SensitivityInternal   = "INTERNAL"
	SensitivityRestricted = "RESTRICTED"
)

// Context is the input to one evaluation. Identifier fields are raw strings
// from the caller; pointer fields distinguish a known value from an unknown
// one, and unknown is never treated as pass.
type Context struct {
	RequesterID  string
	ResourceType string
	Action       string

	CampaignID    string
	DataSubjectID string
	// ConsentID references the consent contract authorizing subject access.
	// Empty with a data subject present means the consent state is unknown.
	ConsentID string

	// RequesterTier is nil when the caller's tier claim is absent.
	RequesterTier *string
	// ResourceSensitivity is nil when the resource is unclassified.
	ResourceSensitivity *string

	// CohortCriteria are the eligibility filters whose matching population
	// must meet the k-minimum.
	CohortCriteria map[string]string
	// KMin overrides the configured default threshold when positive.
	KMin int

	// WindowStart and WindowEnd bound when access is permitted. Both nil
	// means unrestricted.
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// PolicyDecision is the engine's verdict. ReasonCodes preserve evaluation
// order and are never empty on DENY.
type PolicyDecision struct {
	Decision    Decision
	ReasonCodes []string
	Conditions  []string
	Message     string
}

// Allowed reports whether the decision permits access.
func (d PolicyDecision) Allowed() bool {
	return d.Decision == DecisionAllow
}

// Type distinguishes a conditional allow for receipts and callers.
func (d PolicyDecision) Type() string {
	if d.Decision == DecisionAllow && len(d.Conditions) > 0 {
		return "ALLOW_WITH_CONDITIONS"
	}
	return string(d.Decision)
}

func deny(message string, reasons ...string) PolicyDecision {
	return PolicyDecision{
		Decision:    DecisionDeny,
		ReasonCodes: reasons,
		Message:     message,
	}
}

// DecisionReceipt is the persisted record of one evaluation.
type DecisionReceipt struct {
	ID            string
	DecisionType  string
	Decision      Decision
	CampaignID    string
	RequesterID   string
	ReasonCodes   []string
	PolicyVersion string
	CreatedAt     time.Time
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, ",")
}

func splitReasons(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
