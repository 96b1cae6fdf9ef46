package cohort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kanon/internal/auditchain"
	"kanon/pkg/requestcontext"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanon_cohort_checks_total",
		Help: "Total cohort checks by source and outcome",
	}, []string{"source", "outcome"})

	cohortSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kanon_cohort_size",
		Help:    "Distribution of estimated cohort sizes",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

// ReasonKMinViolation is attached to blocked checks.
const ReasonKMinViolation = "K_MIN_VIOLATION"

// Config carries the estimator's business parameters.
type Config struct {
	// KMin is the default minimum cohort size.
	KMin int
	// CacheTTL bounds how long a computed result may be served.
	CacheTTL time.Duration
}

// Service computes and caches cohort checks.
type Service struct {
	counter PopulationCounter
	cache   Cache
	audit   *auditchain.Service
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the cohort estimator.
func NewService(counter PopulationCounter, cache Cache, audit *auditchain.Service, cfg Config, opts ...Option) (*Service, error) {
	if counter == nil {
		return nil, errors.New("population counter is required")
	}
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	if cfg.KMin <= 0 || cfg.CacheTTL <= 0 {
		return nil, errors.New("k-min and cache ttl must be positive")
	}
	s := &Service{
		counter: counter,
		cache:   cache,
		audit:   audit,
		cfg:     cfg,
		logger:  slog.Default(),
		tracer:  otel.Tracer("cohort"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Estimate counts the population matching the criteria, bypassing the cache.
// Deterministic over allowlisted fields only.
func (s *Service) Estimate(ctx context.Context, criteria Criteria) (int, error) {
	n, err := s.counter.Count(ctx, criteria)
	if err != nil {
		return 0, fmt.Errorf("count population: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("population counter returned negative size %d", n)
	}
	return n, nil
}

// Check classifies the cohort for the criteria against kMin (0 selects the
// configured default). A fresh failing check is recorded on the audit chain;
// a cached one is not re-recorded inside its TTL.
func (s *Service) Check(ctx context.Context, criteria Criteria, kMin int) (CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "cohort.Check")
	defer span.End()

	if kMin <= 0 {
		kMin = s.cfg.KMin
	}
	hash := criteria.Hash()
	now := requestcontext.Now(ctx).UTC()
	span.SetAttributes(attribute.String("criteria_hash", hash), attribute.Int("k_min", kMin))

	if cached, ok, err := s.cache.Get(ctx, hash, now); err != nil {
		// A broken cache must not take the check down with it.
		s.logger.WarnContext(ctx, "cohort cache read failed", "criteria_hash", hash, "error", err)
	} else if ok && cached.KMinThreshold == kMin {
		checksTotal.WithLabelValues("cache", outcome(cached.MeetsThreshold)).Inc()
		return cached, nil
	}

	size, err := s.Estimate(ctx, criteria)
	if err != nil {
		return CheckResult{}, err
	}
	cohortSize.Observe(float64(size))

	result := CheckResult{
		CriteriaHash:   hash,
		CohortSize:     size,
		KMinThreshold:  kMin,
		MeetsThreshold: size >= kMin,
		ComputedAt:     now,
		ExpiresAt:      now.Add(s.cfg.CacheTTL),
	}
	if err := s.cache.Set(ctx, result); err != nil {
		s.logger.WarnContext(ctx, "cohort cache write failed", "criteria_hash", hash, "error", err)
	}
	checksTotal.WithLabelValues("fresh", outcome(result.MeetsThreshold)).Inc()

	if !result.MeetsThreshold {
		s.appendBlockReceipt(ctx, result)
	}
	return result, nil
}

func (s *Service) appendBlockReceipt(ctx context.Context, result CheckResult) {
	actorID := ""
	actorType := auditchain.ActorSystem
	if requester := requestcontext.RequesterID(ctx); !requester.IsNil() {
		actorID = requester.String()
		actorType = auditchain.ActorRequester
	}
	_, err := s.audit.Append(ctx, auditchain.EventCohortBlock, actorID, actorType,
		result.CriteriaHash, "cohort", auditchain.DetailsHash(map[string]string{
			"reason":      ReasonKMinViolation,
			"cohort_size": strconv.Itoa(result.CohortSize),
			"k_min":       strconv.Itoa(result.KMinThreshold),
		}))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(auditchain.EventCohortBlock),
			"criteria_hash", result.CriteriaHash,
			"error", err)
	}
}

func outcome(meets bool) string {
	if meets {
		return "pass"
	}
	return "blocked"
}
