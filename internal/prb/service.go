package prb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kanon/internal/auditchain"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/ids"
	"kanon/pkg/platform/sentinel"
	"kanon/pkg/requestcontext"
)

var (
	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanon_prb_operations_total",
		Help: "Total budget ledger operations by type and outcome",
	}, []string{"operation", "outcome"})

	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanon_prb_exhausted_total",
		Help: "Total budgets that reached exhaustion",
	})
)

// updateRetries bounds optimistic-concurrency retries on a version conflict.
const updateRetries = 3

// Config carries the ledger's business parameters.
type Config struct {
	// BaseBudget is the allocation for a campaign with risk level zero.
	BaseBudget domain.Risk
	// RulesetVersion is stamped on every budget at allocation time.
	RulesetVersion string
}

// Service is the Privacy Risk Budget ledger.
type Service struct {
	store  Store
	audit  *auditchain.Service
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the budget ledger.
func NewService(store Store, audit *auditchain.Service, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	if cfg.BaseBudget <= 0 {
		return nil, errors.New("base budget must be positive")
	}
	s := &Service{
		store:  store,
		audit:  audit,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("prb"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// allocationFor scales the base budget by the risk profile: each risk level
// adds half the base on top. Integer arithmetic on micro-units keeps the
// result exact.
func (s *Service) allocationFor(profile *RiskProfile) domain.Risk {
	if profile == nil {
		return s.cfg.BaseBudget
	}
	level := profile.RiskLevel
	if level < 0 {
		level = 0
	}
	return domain.Risk(int64(s.cfg.BaseBudget) * int64(2+level) / 2)
}

// Allocate creates the campaign's budget. A campaign gets exactly one budget;
// a second allocation fails with a conflict.
func (s *Service) Allocate(ctx context.Context, campaignID domain.CampaignID, profile *RiskProfile) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "prb.Allocate",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()

	if campaignID.IsNil() {
		return Budget{}, dErrors.New(dErrors.CodeInvalidInput, "campaign id is required")
	}

	budget := Budget{
		ID:             ids.New(),
		CampaignID:     campaignID,
		Allocated:      s.allocationFor(profile),
		Consumed:       0,
		Status:         StatusAllocated,
		RulesetVersion: s.cfg.RulesetVersion,
		CreatedAt:      requestcontext.Now(ctx).UTC(),
	}

	if err := s.store.Create(ctx, budget); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			consumedTotal.WithLabelValues("allocate", "conflict").Inc()
			return Budget{}, dErrors.Wrap(err, dErrors.CodeConflict,
				fmt.Sprintf("budget already allocated for campaign %s", campaignID))
		}
		return Budget{}, fmt.Errorf("create budget: %w", err)
	}
	consumedTotal.WithLabelValues("allocate", "ok").Inc()

	s.appendReceipt(ctx, auditchain.EventPRBAllocated, campaignID, map[string]string{
		"allocated":       budget.Allocated.String(),
		"ruleset_version": budget.RulesetVersion,
	})

	s.logger.InfoContext(ctx, "budget allocated",
		"campaign_id", campaignID.String(),
		"allocated", budget.Allocated.String())
	return budget, nil
}

// Lock freezes the campaign's allocation. Locking is idempotent in effect but
// a second lock still emits no receipt and reports the invalid state.
func (s *Service) Lock(ctx context.Context, campaignID domain.CampaignID) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "prb.Lock",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()

	var locked Budget
	err := s.withBudget(ctx, campaignID, func(b Budget) (Budget, error) {
		if b.Status == StatusLocked || b.Status == StatusExhausted {
			return Budget{}, dErrors.New(dErrors.CodeInvalidState,
				fmt.Sprintf("budget for campaign %s is already %s", campaignID, b.Status))
		}
		now := requestcontext.Now(ctx).UTC()
		b.Status = StatusLocked
		b.LockedAt = &now
		return b, nil
	}, &locked)
	if err != nil {
		consumedTotal.WithLabelValues("lock", "error").Inc()
		return Budget{}, err
	}
	consumedTotal.WithLabelValues("lock", "ok").Inc()

	s.appendReceipt(ctx, auditchain.EventPRBLocked, campaignID, map[string]string{
		"allocated": locked.Allocated.String(),
	})
	return locked, nil
}

// Consume deducts cost from the campaign's remaining budget. On insufficient
// budget nothing mutates and the caller receives a typed failure.
func (s *Service) Consume(ctx context.Context, campaignID domain.CampaignID, transformID, operationType string, cost domain.Risk) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "prb.Consume", trace.WithAttributes(
		attribute.String("campaign_id", campaignID.String()),
		attribute.String("transform_id", transformID),
	))
	defer span.End()

	if cost <= 0 {
		return Budget{}, dErrors.New(dErrors.CodeInvalidInput, "cost must be positive")
	}

	var updated Budget
	err := s.withBudget(ctx, campaignID, func(b Budget) (Budget, error) {
		if cost > b.Remaining() {
			return Budget{}, dErrors.New(dErrors.CodeBudgetExhausted,
				fmt.Sprintf("cost %s exceeds remaining budget %s for campaign %s",
					cost, b.Remaining(), campaignID))
		}
		b.Consumed += cost
		if b.Remaining() <= 0 {
			b.Status = StatusExhausted
		}
		return b, nil
	}, &updated)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBudgetExhausted) {
			consumedTotal.WithLabelValues("consume", "insufficient").Inc()
		} else {
			consumedTotal.WithLabelValues("consume", "error").Inc()
		}
		return Budget{}, err
	}
	consumedTotal.WithLabelValues("consume", "ok").Inc()
	if updated.Status == StatusExhausted {
		exhaustedTotal.Inc()
	}

	entry := ConsumptionEntry{
		ID:             ids.New(),
		CampaignID:     campaignID,
		TransformID:    transformID,
		OperationType:  operationType,
		Cost:           cost,
		RemainingAfter: updated.Remaining(),
		CreatedAt:      requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.AppendConsumption(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "append consumption entry failed",
			"campaign_id", campaignID.String(), "error", err)
	}

	s.appendReceipt(ctx, auditchain.EventPRBConsumed, campaignID, map[string]string{
		"transform_id":    transformID,
		"operation_type":  operationType,
		"cost":            cost.String(),
		"remaining_after": updated.Remaining().String(),
	})
	return updated, nil
}

// CanConsume reports whether the campaign could absorb the cost right now.
// Pure read; never mutates and never logs to the chain.
func (s *Service) CanConsume(ctx context.Context, campaignID domain.CampaignID, cost domain.Risk) (bool, error) {
	b, err := s.Get(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return cost > 0 && cost <= b.Remaining(), nil
}

// Get returns the campaign's budget.
func (s *Service) Get(ctx context.Context, campaignID domain.CampaignID) (Budget, error) {
	b, err := s.store.GetByCampaign(ctx, campaignID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Budget{}, dErrors.Wrap(err, dErrors.CodeNotFound,
			fmt.Sprintf("no budget allocated for campaign %s", campaignID))
	}
	if err != nil {
		return Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Consumptions returns the campaign's consumption log in append order.
func (s *Service) Consumptions(ctx context.Context, campaignID domain.CampaignID) ([]ConsumptionEntry, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.store.ListConsumptions(ctx, campaignID)
}

// withBudget runs a read-modify-write against the campaign's budget,
// retrying a bounded number of times when another writer wins the version
// race. The mutate callback must be side-effect free.
func (s *Service) withBudget(ctx context.Context, campaignID domain.CampaignID, mutate func(Budget) (Budget, error), out *Budget) error {
	for attempt := 0; attempt <= updateRetries; attempt++ {
		current, err := s.Get(ctx, campaignID)
		if err != nil {
			return err
		}
		next, err := mutate(current)
		if err != nil {
			return err
		}
		updated, err := s.store.Update(ctx, next)
		if errors.Is(err, sentinel.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		*out = updated
		return nil
	}
	return dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("budget for campaign %s is under contention", campaignID))
}

func (s *Service) appendReceipt(ctx context.Context, eventType auditchain.EventType, campaignID domain.CampaignID, details map[string]string) {
	actorID := ""
	actorType := auditchain.ActorSystem
	if requester := requestcontext.RequesterID(ctx); !requester.IsNil() {
		actorID = requester.String()
		actorType = auditchain.ActorRequester
	}
	_, err := s.audit.Append(ctx, eventType, actorID, actorType,
		campaignID.String(), "campaign", auditchain.DetailsHash(details))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(eventType),
			"campaign_id", campaignID.String(),
			"error", err)
	}
}
