package pairwise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

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
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanon_pairwise_operations_total",
		Help: "Total pairwise ledger operations by type and outcome",
	}, []string{"operation", "outcome"})

	suspensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanon_pairwise_suspensions_total",
		Help: "Total pairs suspended for suspected deanonymization probing",
	})
)

const updateRetries = 3

// SimilarityFunc scores two query fingerprints in [0, 1]. It must be
// symmetric and deterministic.
type SimilarityFunc func(a, b string) float64

// Config carries the pairwise ledger's business parameters.
type Config struct {
	// DefaultBudget is allocated to a pair on first use.
	DefaultBudget domain.Risk
	// MaxCostPerQuery caps any single query's cost regardless of the pair's
	// remaining balance.
	MaxCostPerQuery domain.Risk
	// Window bounds how far back the probing check looks.
	Window time.Duration
	// MaxSimilar is the number of similar recent queries that suspends the
	// pair.
	MaxSimilar int
	// SimilarityThreshold is the score at or above which two queries count
	// as similar.
	SimilarityThreshold float64
}

// Service is the pairwise consumption ledger.
type Service struct {
	store      Store
	audit      *auditchain.Service
	cfg        Config
	similarity SimilarityFunc
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the pairwise ledger. The similarity function scores
// query fingerprints for the probing check.
func NewService(store Store, audit *auditchain.Service, similarity SimilarityFunc, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	if similarity == nil {
		return nil, errors.New("similarity function is required")
	}
	if cfg.DefaultBudget <= 0 || cfg.MaxCostPerQuery <= 0 {
		return nil, errors.New("default budget and per-query ceiling must be positive")
	}
	if cfg.Window <= 0 || cfg.MaxSimilar <= 0 {
		return nil, errors.New("window and max-similar must be positive")
	}
	s := &Service{
		store:      store,
		audit:      audit,
		cfg:        cfg,
		similarity: similarity,
		logger:     slog.Default(),
		tracer:     otel.Tracer("pairwise"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allocate creates the pair's budget explicitly. Consume allocates on first
// use, so callers only need this when they want the allocation receipt ahead
// of the first query.
func (s *Service) Allocate(ctx context.Context, key PairKey) (Budget, error) {
	if !key.IsValid() {
		return Budget{}, dErrors.New(dErrors.CodeInvalidInput, "both data subject and requester ids are required")
	}
	budget, created, err := s.getOrCreate(ctx, key)
	if err != nil {
		return Budget{}, err
	}
	if !created {
		return Budget{}, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("budget already allocated for pair %s", key))
	}
	return budget, nil
}

// Consume charges one query against the pair's budget. The pair is allocated
// on first use. A query is refused, leaving no record, when its cost exceeds
// the per-query ceiling, the pair is suspended or exhausted, the balance is
// insufficient, or the query log shows probing.
func (s *Service) Consume(ctx context.Context, key PairKey, queryHash, queryType string, cost domain.Risk) (Budget, error) {
	ctx, span := s.tracer.Start(ctx, "pairwise.Consume",
		trace.WithAttributes(attribute.String("pair", key.String())))
	defer span.End()

	if !key.IsValid() {
		return Budget{}, dErrors.New(dErrors.CodeInvalidInput, "both data subject and requester ids are required")
	}
	if cost <= 0 {
		return Budget{}, dErrors.New(dErrors.CodeInvalidInput, "cost must be positive")
	}
	if cost > s.cfg.MaxCostPerQuery {
		operationsTotal.WithLabelValues("consume", "over_ceiling").Inc()
		return Budget{}, dErrors.New(dErrors.CodeQueryCostTooLarge,
			fmt.Sprintf("query cost %s exceeds per-query ceiling %s", cost, s.cfg.MaxCostPerQuery))
	}

	if _, _, err := s.getOrCreate(ctx, key); err != nil {
		return Budget{}, err
	}

	probing, err := s.probingDetected(ctx, key, queryHash)
	if err != nil {
		return Budget{}, err
	}
	if probing {
		if err := s.suspend(ctx, key, queryHash); err != nil {
			return Budget{}, err
		}
		operationsTotal.WithLabelValues("consume", "suspended").Inc()
		return Budget{}, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("pair %s suspended for repeated similar queries", key))
	}

	now := requestcontext.Now(ctx).UTC()
	var updated Budget
	err = s.withBudget(ctx, key, func(b Budget) (Budget, error) {
		switch b.Status {
		case StatusSuspended:
			return Budget{}, dErrors.New(dErrors.CodeForbidden,
				fmt.Sprintf("pair %s is suspended", key))
		case StatusExhausted:
			return Budget{}, dErrors.New(dErrors.CodeBudgetExhausted,
				fmt.Sprintf("pair %s budget is exhausted", key))
		}
		if cost > b.Remaining() {
			return Budget{}, dErrors.New(dErrors.CodeBudgetExhausted,
				fmt.Sprintf("cost %s exceeds remaining pair budget %s", cost, b.Remaining()))
		}
		b.Consumed += cost
		b.UpdatedAt = now
		if b.Remaining() <= 0 {
			b.Status = StatusExhausted
		}
		return b, nil
	}, &updated)
	if err != nil {
		operationsTotal.WithLabelValues("consume", "refused").Inc()
		return Budget{}, err
	}
	operationsTotal.WithLabelValues("consume", "ok").Inc()

	record := QueryRecord{
		ID:        ids.New(),
		Key:       key,
		QueryHash: queryHash,
		QueryType: queryType,
		Cost:      cost,
		CreatedAt: now,
	}
	if err := s.store.AppendQuery(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "append query record failed", "pair", key.String(), "error", err)
	}

	s.appendReceipt(ctx, auditchain.EventPairwiseConsumed, key, map[string]string{
		"query_hash":      queryHash,
		"query_type":      queryType,
		"cost":            cost.String(),
		"remaining_after": updated.Remaining().String(),
	})
	return updated, nil
}

// CanConsume reports whether the pair could absorb the cost right now. Pure
// read; a pair with no budget yet can absorb anything up to the smaller of
// the default budget and the per-query ceiling.
func (s *Service) CanConsume(ctx context.Context, key PairKey, cost domain.Risk) (bool, error) {
	if cost <= 0 || cost > s.cfg.MaxCostPerQuery {
		return false, nil
	}
	b, err := s.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return cost <= s.cfg.DefaultBudget, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pair budget: %w", err)
	}
	return b.Status == StatusActive && cost <= b.Remaining(), nil
}

// CheckBlocked reports whether the pair is suspended. An unknown pair is not
// blocked.
func (s *Service) CheckBlocked(ctx context.Context, key PairKey) (bool, error) {
	b, err := s.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pair budget: %w", err)
	}
	return b.Status == StatusSuspended, nil
}

// Get returns the pair's budget.
func (s *Service) Get(ctx context.Context, key PairKey) (Budget, error) {
	b, err := s.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Budget{}, dErrors.Wrap(err, dErrors.CodeNotFound,
			fmt.Sprintf("no budget for pair %s", key))
	}
	if err != nil {
		return Budget{}, fmt.Errorf("get pair budget: %w", err)
	}
	return b, nil
}

// RecentQueries returns the pair's query records inside the probing window,
// oldest first.
func (s *Service) RecentQueries(ctx context.Context, key PairKey) ([]QueryRecord, error) {
	since := requestcontext.Now(ctx).UTC().Add(-s.cfg.Window)
	return s.store.ListQueriesSince(ctx, key, since)
}

// probingDetected counts windowed records similar to the incoming query.
func (s *Service) probingDetected(ctx context.Context, key PairKey, queryHash string) (bool, error) {
	recent, err := s.RecentQueries(ctx, key)
	if err != nil {
		return false, fmt.Errorf("list recent queries: %w", err)
	}
	similar := 0
	for _, r := range recent {
		if s.similarity(r.QueryHash, queryHash) >= s.cfg.SimilarityThreshold {
			similar++
			if similar >= s.cfg.MaxSimilar {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) suspend(ctx context.Context, key PairKey, queryHash string) error {
	var suspended Budget
	err := s.withBudget(ctx, key, func(b Budget) (Budget, error) {
		if b.Status == StatusSuspended {
			return b, nil
		}
		b.Status = StatusSuspended
		b.UpdatedAt = requestcontext.Now(ctx).UTC()
		return b, nil
	}, &suspended)
	if err != nil {
		return err
	}
	suspensionsTotal.Inc()

	s.appendReceipt(ctx, auditchain.EventLinkageBlock, key, map[string]string{
		"query_hash": queryHash,
		"reason":     "MAX_SIMILAR_QUERIES",
	})
	s.logger.WarnContext(ctx, "pair suspended for probing", "pair", key.String())
	return nil
}

func (s *Service) getOrCreate(ctx context.Context, key PairKey) (Budget, bool, error) {
	budget, err := s.store.Get(ctx, key)
	if err == nil {
		return budget, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return Budget{}, false, fmt.Errorf("get pair budget: %w", err)
	}

	now := requestcontext.Now(ctx).UTC()
	budget = Budget{
		Key:       key,
		Allocated: s.cfg.DefaultBudget,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, budget); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another request allocated first; use theirs.
			existing, getErr := s.store.Get(ctx, key)
			if getErr != nil {
				return Budget{}, false, fmt.Errorf("get pair budget: %w", getErr)
			}
			return existing, false, nil
		}
		return Budget{}, false, fmt.Errorf("create pair budget: %w", err)
	}

	s.appendReceipt(ctx, auditchain.EventPairwiseAllocated, key, map[string]string{
		"allocated": budget.Allocated.String(),
	})
	return budget, true, nil
}

func (s *Service) withBudget(ctx context.Context, key PairKey, mutate func(Budget) (Budget, error), out *Budget) error {
	for attempt := 0; attempt <= updateRetries; attempt++ {
		current, err := s.Get(ctx, key)
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
			return fmt.Errorf("update pair budget: %w", err)
		}
		*out = updated
		return nil
	}
	return dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("pair %s budget is under contention", key))
}

func (s *Service) appendReceipt(ctx context.Context, eventType auditchain.EventType, key PairKey, details map[string]string) {
	_, err := s.audit.Append(ctx, eventType,
		key.RequesterID.String(), auditchain.ActorRequester,
		key.String(), "pair", auditchain.DetailsHash(details))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(eventType), "pair", key.String(), "error", err)
	}
}
