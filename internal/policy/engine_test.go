package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kanon/internal/auditchain"
	"kanon/internal/cohort"
	"kanon/internal/linkage"
	"kanon/internal/pairwise"
	"kanon/internal/policy/mocks"
)

// =============================================================================
// Decision Engine Test Suite
// =============================================================================
// Justification for unit tests: the engine's contract is fail-closed
// totality. Mocked ports let each stage be driven into pass, fail,
// uncertainty, error, and panic independently, which integration tests
// against real ledgers cannot do deterministically.

type EngineSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockCohort   *mocks.MockCohortPort
	mockLinkage  *mocks.MockLinkagePort
	mockPairwise *mocks.MockPairwisePort
	mockConsent  *mocks.MockConsentPort
	store        *InMemoryStore
	auditStore   *auditchain.InMemoryStore
	service      *Service
	ctx          context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockCohort = mocks.NewMockCohortPort(s.ctrl)
	s.mockLinkage = mocks.NewMockLinkagePort(s.ctrl)
	s.mockPairwise = mocks.NewMockPairwisePort(s.ctrl)
	s.mockConsent = mocks.NewMockConsentPort(s.ctrl)
	s.store = NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.auditStore = auditchain.NewInMemoryStore()
	audit, err := auditchain.NewService(s.auditStore, auditchain.WithLogger(logger))
	s.Require().NoError(err)

	svc, err := NewService(
		s.mockCohort, s.mockLinkage, s.mockPairwise, s.mockConsent,
		s.store, audit,
		Config{KMin: 50, BroadeningCeiling: 4, PolicyVersion: "1.0.0"},
		WithLogger(logger),
	)
	s.Require().NoError(err)
	s.service = svc
	s.ctx = context.Background()
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func strptr(v string) *string { return &v }

// validContext is a context that passes every stage when the cohort is big
// enough. No data subject, so consent and linkage are out of scope.
func validContext() Context {
	return Context{
		RequesterID:         uuid.NewString(),
		ResourceType:        "data_subject_profile",
		Action:              "READ",
		CampaignID:          uuid.NewString(),
		RequesterTier:       strptr(TierStandard),
		ResourceSensitivity: strptr(SensitivityPublic),
		CohortCriteria:      map[string]string{"account_type": "DS_IND"},
	}
}

func cohortResult(size, kMin int) cohort.CheckResult {
	return cohort.CheckResult{
		CohortSize:     size,
		KMinThreshold:  kMin,
		MeetsThreshold: size >= kMin,
	}
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *EngineSuite) TestNewService() {
	s.Run("nil port rejected", func() {
		_, err := NewService(nil, s.mockLinkage, s.mockPairwise, s.mockConsent,
			s.store, nil, Config{KMin: 50, BroadeningCeiling: 4})
		s.Error(err)
	})

	s.Run("non-positive thresholds rejected", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		audit, err := auditchain.NewService(auditchain.NewInMemoryStore(), auditchain.WithLogger(logger))
		s.Require().NoError(err)
		_, err = NewService(s.mockCohort, s.mockLinkage, s.mockPairwise, s.mockConsent,
			s.store, audit, Config{KMin: 0, BroadeningCeiling: 4})
		s.Error(err)
	})
}

// =============================================================================
// VALIDATE Stage
// =============================================================================

func (s *EngineSuite) TestValidate() {
	s.Run("missing requester id denies immediately", func() {
		pc := validContext()
		pc.RequesterID = ""
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonMissingRequesterID}, d.ReasonCodes)
	})

	s.Run("all identifying fields missing lists every gap", func() {
		d := s.service.Evaluate(s.ctx, Context{})
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonMissingRequesterID, ReasonMissingResourceType, ReasonMissingAction}, d.ReasonCodes)
	})

	s.Run("no later stage runs on an invalid context", func() {
		// No expectations on any mock: a port call would fail the test.
		pc := validContext()
		pc.Action = ""
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
	})
}

// =============================================================================
// EVALUATE_RULES Stage: Uncertainty Is Never Permission
// =============================================================================

func (s *EngineSuite) TestUncertainty() {
	s.Run("unknown sensitivity denies despite everything else valid", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		pc.ResourceSensitivity = nil
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Contains(d.ReasonCodes, ReasonUnknownSensitivity)
		s.Contains(d.ReasonCodes, ReasonUncertaintyDetected)
	})

	s.Run("unknown tier denies", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		pc.RequesterTier = nil
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Contains(d.ReasonCodes, ReasonUnknownTier)
		s.Contains(d.ReasonCodes, ReasonUncertaintyDetected)
	})

	s.Run("data subject without consent reference denies as unknown consent", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)
		s.mockPairwise.EXPECT().CheckBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
		s.mockPairwise.EXPECT().RecentQueries(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.mockLinkage.EXPECT().AssessRisk(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(linkage.Assessment{Level: linkage.RiskLow}, nil)

		pc := validContext()
		pc.DataSubjectID = uuid.NewString()
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Contains(d.ReasonCodes, ReasonUnknownConsent)
		s.Contains(d.ReasonCodes, ReasonUncertaintyDetected)
	})

	s.Run("half-open time window is uncertainty, not pass", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		start := time.Now().Add(-time.Hour)
		pc.WindowStart = &start
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Contains(d.ReasonCodes, ReasonUnknownTimeWindow)
	})
}

// =============================================================================
// EVALUATE_RULES Stage: Explicit Failures
// =============================================================================

func (s *EngineSuite) TestRuleFailures() {
	s.Run("insufficient tier for restricted resource", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		pc.ResourceSensitivity = strptr(SensitivityRestricted)
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonTierFailed}, d.ReasonCodes)
	})

	s.Run("invalid consent is an explicit failure, not uncertainty", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)
		s.mockPairwise.EXPECT().CheckBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
		s.mockPairwise.EXPECT().RecentQueries(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.mockLinkage.EXPECT().AssessRisk(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(linkage.Assessment{Level: linkage.RiskLow}, nil)
		s.mockConsent.EXPECT().ValidAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

		pc := validContext()
		pc.DataSubjectID = uuid.NewString()
		pc.ConsentID = uuid.NewString()
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonConsentFailed}, d.ReasonCodes)
		s.NotContains(d.ReasonCodes, ReasonUncertaintyDetected)
	})

	s.Run("request outside the access window", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		start := time.Now().Add(-2 * time.Hour)
		end := time.Now().Add(-time.Hour)
		pc.WindowStart = &start
		pc.WindowEnd = &end
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonTimeWindowFailed}, d.ReasonCodes)
	})
}

// =============================================================================
// Linkage and Suspension Gates
// =============================================================================

func (s *EngineSuite) TestLinkageGates() {
	s.Run("suspended pair denies before rules run", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)
		s.mockPairwise.EXPECT().CheckBlocked(gomock.Any(), gomock.Any()).Return(true, nil)

		pc := validContext()
		pc.DataSubjectID = uuid.NewString()
		pc.ConsentID = uuid.NewString()
		s.mockConsent.EXPECT().ValidAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonPairSuspended}, d.ReasonCodes)
	})

	s.Run("high-risk assessment denies as linkage blocked", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)
		s.mockPairwise.EXPECT().CheckBlocked(gomock.Any(), gomock.Any()).Return(false, nil)
		s.mockPairwise.EXPECT().RecentQueries(gomock.Any(), gomock.Any()).
			Return([]pairwise.QueryRecord{{QueryHash: "q"}}, nil)
		s.mockLinkage.EXPECT().AssessRisk(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(linkage.Assessment{Level: linkage.RiskHigh, Blocked: true}, nil)
		s.mockConsent.EXPECT().ValidAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

		pc := validContext()
		pc.DataSubjectID = uuid.NewString()
		pc.ConsentID = uuid.NewString()
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonLinkageBlocked}, d.ReasonCodes)
	})
}

// =============================================================================
// CHECK_COHORT Stage and Bounded Broadening
// =============================================================================

func (s *EngineSuite) TestCohortCheck() {
	s.Run("sufficient cohort allows", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil)

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionAllow, d.Decision)
		s.Empty(d.Conditions)
		s.Equal("ALLOW", d.Type())
	})

	// A cohort of 40 against k-min 50 needs a 2x factor, inside the 4x
	// ceiling, broadening to 80.
	s.Run("undersized cohort broadens within the ceiling", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(40, 50), nil)

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionAllow, d.Decision)
		s.Equal([]string{"BROADENED_COHORT:80"}, d.Conditions)
		s.Equal("ALLOW_WITH_CONDITIONS", d.Type())
	})

	s.Run("factor above the ceiling refuses to broaden", func() {
		// 50/10 needs 5x, above the 4x ceiling.
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(10, 50), nil)

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonBroadeningFailed}, d.ReasonCodes)
	})

	s.Run("empty cohort cannot be broadened", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(0, 50), nil)

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonCohortTooSmall}, d.ReasonCodes)
	})

	s.Run("configured k-min applies when the context omits it", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), 50).
			Return(cohortResult(1000, 50), nil)

		pc := validContext()
		pc.KMin = 0
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionAllow, d.Decision)
	})

	s.Run("context k-min overrides the configured default", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), 75).
			Return(cohortResult(1000, 75), nil)

		pc := validContext()
		pc.KMin = 75
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionAllow, d.Decision)
	})

	s.Run("missing criteria is uncertainty at the cohort stage", func() {
		pc := validContext()
		pc.CohortCriteria = nil
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonUnknownCriteria, ReasonUncertaintyDetected}, d.ReasonCodes)
	})
}

// =============================================================================
// Fail-Closed Totality: Errors and Panics Become Denials
// =============================================================================

func (s *EngineSuite) TestFailClosed() {
	s.Run("port error denies with evaluation error", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohort.CheckResult{}, errors.New("population store unavailable"))

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonEvaluationError}, d.ReasonCodes)
	})

	s.Run("panic inside a stage denies with catastrophic failure", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, cohort.Criteria, int) (cohort.CheckResult, error) {
				panic("boom")
			})

		d := s.service.Evaluate(s.ctx, validContext())
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonCatastrophicFailure}, d.ReasonCodes)
	})

	s.Run("panic on a parallel signal fetch denies with catastrophic failure", func() {
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil).AnyTimes()
		s.mockConsent.EXPECT().ValidAt(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(true, nil).AnyTimes()
		s.mockPairwise.EXPECT().CheckBlocked(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, pairwise.PairKey) (bool, error) {
				panic("pair store corrupted")
			})

		pc := validContext()
		pc.DataSubjectID = uuid.NewString()
		pc.ConsentID = uuid.NewString()
		d := s.service.Evaluate(s.ctx, pc)
		s.Equal(DecisionDeny, d.Decision)
		s.Equal([]string{ReasonCatastrophicFailure}, d.ReasonCodes)
	})

	s.Run("every deny carries at least one reason code", func() {
		contexts := []Context{
			{},
			{RequesterID: uuid.NewString()},
			func() Context { pc := validContext(); pc.RequesterTier = nil; return pc }(),
		}
		s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(cohortResult(1000, 50), nil).AnyTimes()
		for _, pc := range contexts {
			d := s.service.Evaluate(s.ctx, pc)
			if d.Decision == DecisionDeny {
				s.NotEmpty(d.ReasonCodes)
			}
		}
	})
}

// =============================================================================
// Decision Recording
// =============================================================================

func (s *EngineSuite) TestRecording() {
	s.mockCohort.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(cohortResult(40, 50), nil)

	pc := validContext()
	d := s.service.Evaluate(s.ctx, pc)
	s.Equal("ALLOW_WITH_CONDITIONS", d.Type())

	receipts, err := s.service.History(s.ctx, pc.RequesterID)
	s.Require().NoError(err)
	s.Require().Len(receipts, 1)
	s.Equal("ALLOW_WITH_CONDITIONS", receipts[0].DecisionType)
	s.Equal("1.0.0", receipts[0].PolicyVersion)
	s.Equal(pc.CampaignID, receipts[0].CampaignID)

	chained, err := s.auditStore.List(s.ctx, auditchain.Filter{
		EventType: auditchain.EventPolicyEvaluated,
		ActorID:   pc.RequesterID,
	})
	s.Require().NoError(err)
	s.Len(chained, 1)
}
