package linkage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kanon/internal/auditchain"
	"kanon/pkg/domain"
	"kanon/pkg/ids"
	"kanon/pkg/requestcontext"
)

var assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kanon_linkage_assessments_total",
	Help: "Total linkage risk assessments by resulting level",
}, []string{"level"})

// Service runs the detector and records HIGH-risk outcomes.
type Service struct {
	detector *Detector
	store    Store
	audit    *auditchain.Service
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the linkage service.
func NewService(detector *Detector, store Store, audit *auditchain.Service, opts ...Option) (*Service, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	s := &Service{
		detector: detector,
		store:    store,
		audit:    audit,
		logger:   slog.Default(),
		tracer:   otel.Tracer("linkage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AssessRisk scores the requester's recent queries. A HIGH-risk outcome
// appends a block receipt and a rate-limit record before returning; the
// assessment itself never mutates any budget.
func (s *Service) AssessRisk(ctx context.Context, requesterID domain.RequesterID, queries []Query) (Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "linkage.AssessRisk",
		trace.WithAttributes(attribute.String("requester_id", requesterID.String())))
	defer span.End()

	now := requestcontext.Now(ctx).UTC()
	assessment := s.detector.Assess(now, queries)
	assessmentsTotal.WithLabelValues(string(assessment.Level)).Inc()
	span.SetAttributes(
		attribute.String("level", string(assessment.Level)),
		attribute.Int("similar_count", assessment.SimilarCount),
	)

	if !assessment.Blocked {
		return assessment, nil
	}

	lastHash := ""
	if n := len(queries); n > 0 {
		lastHash = queries[n-1].Hash
	}
	record := RateLimitRecord{
		ID:              ids.New(),
		RequesterID:     requesterID,
		QueryHash:       lastHash,
		SimilarityScore: assessment.Score,
		QueryCount:      assessment.TotalQueries,
		WindowStart:     assessment.WindowStart,
		WindowEnd:       assessment.WindowEnd,
		Blocked:         true,
		CreatedAt:       now,
	}
	if err := s.store.Append(ctx, record); err != nil {
		return Assessment{}, fmt.Errorf("record rate limit: %w", err)
	}

	_, err := s.audit.Append(ctx, auditchain.EventLinkageBlock,
		requesterID.String(), auditchain.ActorRequester,
		requesterID.String(), "requester",
		auditchain.DetailsHash(map[string]string{
			"similar_count": strconv.Itoa(assessment.SimilarCount),
			"query_count":   strconv.Itoa(assessment.TotalQueries),
			"narrowing":     strconv.FormatBool(assessment.NarrowingDetected),
			"score":         strconv.FormatFloat(assessment.Score, 'f', 4, 64),
		}))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(auditchain.EventLinkageBlock),
			"requester_id", requesterID.String(),
			"error", err)
	}

	s.logger.WarnContext(ctx, "linkage risk blocked requester",
		"requester_id", requesterID.String(),
		"similar_count", assessment.SimilarCount,
		"narrowing", assessment.NarrowingDetected,
		"query_count", assessment.TotalQueries)
	return assessment, nil
}

// History returns the requester's recorded HIGH-risk windows.
func (s *Service) History(ctx context.Context, requesterID domain.RequesterID) ([]RateLimitRecord, error) {
	return s.store.ListByRequester(ctx, requesterID)
}
