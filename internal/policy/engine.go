package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Evaluate runs the full decision pipeline:
//
//	VALIDATE -> EVALUATE_RULES -> CHECK_COHORT -> ALLOW | DENY
//
// It always returns a decision. Errors from collaborators become
// EVALUATION_ERROR denials; a panic anywhere inside becomes a
// CATASTROPHIC_FAILURE denial. Nothing escapes, and nothing defaults to
// allow.
func (s *Service) Evaluate(ctx context.Context, pc Context) (decision PolicyDecision) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "policy.Evaluate")

	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.PanicsRecovered.Inc()
			}
			s.logger.ErrorContext(ctx, "policy evaluation panicked", "panic", r)
			decision = deny("policy evaluation failed; access denied", ReasonCatastrophicFailure)
			s.record(ctx, pc, decision)
		}
		s.observeDecision(decision, start)
		span.SetAttributes(attribute.String("decision", decision.Type()))
		span.End()
	}()

	decision = s.evaluate(ctx, pc)
	s.record(ctx, pc, decision)
	return decision
}

func (s *Service) evaluate(ctx context.Context, pc Context) PolicyDecision {
	// VALIDATE
	if d, ok := validate(pc); !ok {
		return d
	}

	// Gather collaborator signals up front; any infrastructure failure is a
	// denial, never an implicit pass.
	sig, err := s.gatherSignals(ctx, pc)
	if err != nil {
		if errors.Is(err, errSignalPanic) {
			if s.metrics != nil {
				s.metrics.PanicsRecovered.Inc()
			}
			s.logger.ErrorContext(ctx, "signal fetch panicked", "error", err)
			return deny("policy evaluation failed; access denied", ReasonCatastrophicFailure)
		}
		s.logger.WarnContext(ctx, "signal gathering failed", "error", err)
		return deny(fmt.Sprintf("could not gather policy signals: %v", err), ReasonEvaluationError)
	}

	if sig.pairBlocked != nil && *sig.pairBlocked {
		return deny("requester is suspended for this data subject", ReasonPairSuspended)
	}
	if sig.assessment != nil && sig.assessment.Blocked {
		return deny("query pattern indicates linkage risk", ReasonLinkageBlocked)
	}

	// EVALUATE_RULES
	uncertainCodes, failedCodes := s.evaluateRules(ctx, pc, sig)
	if len(uncertainCodes) > 0 {
		reasons := append(uncertainCodes, ReasonUncertaintyDetected)
		return deny("required policy inputs are unknown; access denied", reasons...)
	}
	if len(failedCodes) > 0 {
		return deny("policy rules failed", failedCodes...)
	}

	// CHECK_COHORT
	return s.checkCohort(pc, sig)
}

// validate rejects contexts missing the identifying trio outright. No later
// stage runs on an unidentifiable request.
func validate(pc Context) (PolicyDecision, bool) {
	var missing []string
	if pc.RequesterID == "" {
		missing = append(missing, ReasonMissingRequesterID)
	}
	if pc.ResourceType == "" {
		missing = append(missing, ReasonMissingResourceType)
	}
	if pc.Action == "" {
		missing = append(missing, ReasonMissingAction)
	}
	if len(missing) > 0 {
		return deny("policy context is incomplete", missing...), false
	}
	return PolicyDecision{}, true
}

// checkCohort admits cohorts meeting the threshold, attempts bounded
// broadening for undersized non-empty cohorts, and denies everything else.
func (s *Service) checkCohort(pc Context, sig *signals) PolicyDecision {
	if sig.cohortResult == nil {
		return deny("cohort criteria are unknown; access denied",
			ReasonUnknownCriteria, ReasonUncertaintyDetected)
	}
	result := *sig.cohortResult
	if result.MeetsThreshold {
		return PolicyDecision{
			Decision: DecisionAllow,
			Message:  "all policy checks passed",
		}
	}
	if result.CohortSize <= 0 {
		return deny(
			fmt.Sprintf("cohort of %d is below the minimum of %d and cannot be broadened",
				result.CohortSize, result.KMinThreshold),
			ReasonCohortTooSmall)
	}

	// Bounded broadening: the factor needed to reach the threshold must not
	// exceed the ceiling.
	factor := (result.KMinThreshold + result.CohortSize - 1) / result.CohortSize
	if factor > s.cfg.BroadeningCeiling {
		return deny(
			fmt.Sprintf("broadening by %dx exceeds the %dx ceiling", factor, s.cfg.BroadeningCeiling),
			ReasonBroadeningFailed)
	}
	broadened := result.CohortSize * factor
	if broadened < result.KMinThreshold {
		return deny(
			fmt.Sprintf("broadened cohort of %d still below the minimum of %d",
				broadened, result.KMinThreshold),
			ReasonCohortTooSmall)
	}
	return PolicyDecision{
		Decision:   DecisionAllow,
		Conditions: []string{ConditionBroadenedCohort(broadened)},
		Message:    fmt.Sprintf("allowed with cohort broadened to %d", broadened),
	}
}
