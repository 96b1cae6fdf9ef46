package policy

import (
	"context"

	"kanon/pkg/requestcontext"
)

// ruleVerdict is the outcome of one rule against one context.
type ruleVerdict int

const (
	rulePass ruleVerdict = iota
	ruleFail
	// ruleUncertain means a required input was absent or unrecognized.
	// Absence of information is never interpreted as permission.
	ruleUncertain
)

type ruleResult struct {
	verdict ruleVerdict
	code    string
}

func pass() ruleResult {
	return ruleResult{verdict: rulePass}
}

func fail(code string) ruleResult {
	return ruleResult{verdict: ruleFail, code: code}
}

func uncertain(code string) ruleResult {
	return ruleResult{verdict: ruleUncertain, code: code}
}

var tierRank = map[string]int{
	TierStandard: 1,
	TierElevated: 2,
	TierAdmin:    3,
}

var requiredTier = map[string]int{
	SensitivityPublic:     tierRank[TierStandard],
	SensitivityInternal:   tierRank[TierElevated],
	SensitivityRestricted: tierRank[TierAdmin],
}

// evaluateRules runs the fixed rule set in a stable order and partitions the
// outcomes. Uncertainty and explicit failure stay distinct: the caller denies
// on either, but with different reason codes.
func (s *Service) evaluateRules(ctx context.Context, pc Context, sig *signals) (uncertainCodes, failedCodes []string) {
	results := []ruleResult{
		s.tierRule(ctx, pc),
		sensitivityRule(pc),
		consentRule(pc, sig),
		timeWindowRule(ctx, pc),
	}
	for _, r := range results {
		switch r.verdict {
		case ruleUncertain:
			uncertainCodes = append(uncertainCodes, r.code)
		case ruleFail:
			failedCodes = append(failedCodes, r.code)
		}
	}
	return uncertainCodes, failedCodes
}

// tierRule requires the requester's tier to cover the resource sensitivity.
// The tier claim may arrive in the context or from the authenticated request.
func (s *Service) tierRule(ctx context.Context, pc Context) ruleResult {
	tier := ""
	if pc.RequesterTier != nil {
		tier = *pc.RequesterTier
	} else if claimed := requestcontext.RequesterTier(ctx); claimed != "" {
		tier = claimed
	}
	rank, known := tierRank[tier]
	if !known {
		return uncertain(ReasonUnknownTier)
	}

	// Without a known sensitivity there is nothing to rank against; the
	// sensitivity rule reports that uncertainty.
	if pc.ResourceSensitivity == nil {
		return pass()
	}
	required, known := requiredTier[*pc.ResourceSensitivity]
	if !known {
		return pass()
	}
	if rank < required {
		return fail(ReasonTierFailed)
	}
	return pass()
}

// sensitivityRule requires the resource to carry a recognized classification.
func sensitivityRule(pc Context) ruleResult {
	if pc.ResourceSensitivity == nil {
		return uncertain(ReasonUnknownSensitivity)
	}
	if _, known := requiredTier[*pc.ResourceSensitivity]; !known {
		return uncertain(ReasonUnknownSensitivity)
	}
	return pass()
}

// consentRule requires a valid consent contract whenever a data subject is
// in scope. No subject, no consent needed.
func consentRule(pc Context, sig *signals) ruleResult {
	if pc.DataSubjectID == "" {
		return pass()
	}
	if sig.consentValid == nil {
		return uncertain(ReasonUnknownConsent)
	}
	if !*sig.consentValid {
		return fail(ReasonConsentFailed)
	}
	return pass()
}

// timeWindowRule requires the request to fall inside the permitted access
// window. Both bounds absent means unrestricted; a half-open restriction is
// an uncertainty, not a pass.
func timeWindowRule(ctx context.Context, pc Context) ruleResult {
	if pc.WindowStart == nil && pc.WindowEnd == nil {
		return pass()
	}
	if pc.WindowStart == nil || pc.WindowEnd == nil {
		return uncertain(ReasonUnknownTimeWindow)
	}
	now := requestcontext.Now(ctx).UTC()
	if now.Before(*pc.WindowStart) || now.After(*pc.WindowEnd) {
		return fail(ReasonTimeWindowFailed)
	}
	return pass()
}
