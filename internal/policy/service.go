package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"kanon/internal/auditchain"
	"kanon/internal/policy/metrics"
	"kanon/internal/policy/ports"
	"kanon/pkg/ids"
	"kanon/pkg/requestcontext"
)

// Config carries the engine's business parameters.
type Config struct {
	// KMin is the default cohort threshold when the context does not
	// override it.
	KMin int
	// BroadeningCeiling is the largest multiplicative factor the engine may
	// apply to an undersized cohort.
	BroadeningCeiling int
	// PolicyVersion is stamped on every decision receipt.
	PolicyVersion string
}

// Service is the fail-closed decision engine. It orchestrates validation,
// rule evaluation, and cohort checks, and records every terminal decision.
type Service struct {
	cohort   ports.CohortPort
	linkage  ports.LinkagePort
	pairwise ports.PairwisePort
	consent  ports.ConsentPort

	store   Store
	audit   *auditchain.Service
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the decision engine.
func NewService(
	cohortPort ports.CohortPort,
	linkagePort ports.LinkagePort,
	pairwisePort ports.PairwisePort,
	consentPort ports.ConsentPort,
	store Store,
	audit *auditchain.Service,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	if cohortPort == nil || linkagePort == nil || pairwisePort == nil || consentPort == nil {
		return nil, errors.New("all ports are required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	if cfg.KMin <= 0 || cfg.BroadeningCeiling <= 0 {
		return nil, errors.New("k-min and broadening ceiling must be positive")
	}
	s := &Service{
		cohort:   cohortPort,
		linkage:  linkagePort,
		pairwise: pairwisePort,
		consent:  consentPort,
		store:    store,
		audit:    audit,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("policy"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// History returns the requester's recorded decisions.
func (s *Service) History(ctx context.Context, requesterID string) ([]DecisionReceipt, error) {
	return s.store.ListByRequester(ctx, requesterID)
}

// record persists the decision receipt and chains the audit entry. Recording
// is best effort: a persistence failure is logged, never allowed to turn a
// produced decision into an error.
func (s *Service) record(ctx context.Context, pc Context, d PolicyDecision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic while recording decision", "panic", r)
		}
	}()

	now := requestcontext.Now(ctx).UTC()
	receipt := DecisionReceipt{
		ID:            ids.New(),
		DecisionType:  d.Type(),
		Decision:      d.Decision,
		CampaignID:    pc.CampaignID,
		RequesterID:   pc.RequesterID,
		ReasonCodes:   d.ReasonCodes,
		PolicyVersion: s.cfg.PolicyVersion,
		CreatedAt:     now,
	}
	if err := s.store.Append(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "append decision receipt failed", "error", err)
	}

	_, err := s.audit.Append(ctx, auditchain.EventPolicyEvaluated,
		pc.RequesterID, auditchain.ActorRequester,
		pc.CampaignID, "campaign",
		auditchain.DetailsHash(map[string]string{
			"decision":       d.Type(),
			"reason_codes":   joinReasons(d.ReasonCodes),
			"conditions":     joinReasons(d.Conditions),
			"policy_version": s.cfg.PolicyVersion,
		}))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(auditchain.EventPolicyEvaluated), "error", err)
	}
}

func (s *Service) observeDecision(d PolicyDecision, start time.Time) {
	if s.metrics == nil {
		return
	}
	reason := ""
	if len(d.ReasonCodes) > 0 {
		reason = d.ReasonCodes[0]
	}
	s.metrics.ObserveDecision(d.Type(), reason, time.Since(start))
}

func (s *Service) observeSignal(source string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSignalLatency(source, time.Since(start))
	}
}
