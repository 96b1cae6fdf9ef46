package auditchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kanon/pkg/ids"
	"kanon/pkg/platform/sentinel"
	"kanon/pkg/requestcontext"
)

var (
	appendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanon_audit_receipts_appended_total",
		Help: "Total audit receipts appended to the chain by event type",
	}, []string{"event_type"})

	mirrorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanon_audit_mirror_failures_total",
		Help: "Total failures publishing receipts to the Kafka mirror",
	})
)

// Mirror publishes appended receipts to an external sink for compliance
// consumers. The chain store remains the source of truth; mirror failures are
// logged, not propagated.
type Mirror interface {
	Publish(ctx context.Context, receipt Receipt) error
}

// Service appends to and verifies the receipt chain.
//
// Appends are strictly serialized: each append must observe the true latest
// receipt hash before computing the next link, so the service holds a single
// chain lock across the read-link-write sequence. This is the one global lock
// in the engine; every other ledger locks per key.
type Service struct {
	store   Store
	mirror  Mirror
	logger  *slog.Logger
	tracer  trace.Tracer
	chainMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithMirror attaches an external receipt mirror.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the chain service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("chain store is required")
	}
	svc := &Service{
		store:  store,
		tracer: otel.Tracer("kanon/auditchain"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Append links and persists a new receipt, returning the stored node.
func (s *Service) Append(ctx context.Context, eventType EventType, actorID string, actorType ActorType, resourceID, resourceType, detailsHash string) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "auditchain.Append",
		trace.WithAttributes(attribute.String("event_type", string(eventType))))
	defer span.End()

	if eventType == "" {
		return Receipt{}, fmt.Errorf("event type is required")
	}

	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	previousHash, err := s.store.LatestHash(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		previousHash = GenesisHash
	} else if err != nil {
		return Receipt{}, fmt.Errorf("read latest receipt hash: %w", err)
	}

	receipt := Receipt{
		ID:           ids.New(),
		EventType:    eventType,
		ActorID:      actorID,
		ActorType:    actorType,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		DetailsHash:  detailsHash,
		PreviousHash: previousHash,
		ReceiptHash:  ComputeReceiptHash(eventType, actorID, resourceID, detailsHash, previousHash),
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}

	if err := s.store.Append(ctx, receipt); err != nil {
		return Receipt{}, fmt.Errorf("append receipt: %w", err)
	}
	appendsTotal.WithLabelValues(string(eventType)).Inc()

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, receipt); err != nil {
			mirrorFailures.Inc()
			if s.logger != nil {
				s.logger.WarnContext(ctx, "audit mirror publish failed",
					"receipt_id", receipt.ID,
					"error", err,
				)
			}
		}
	}

	return receipt, nil
}

// Get returns a single receipt by ID.
func (s *Service) Get(ctx context.Context, receiptID string) (Receipt, error) {
	return s.store.Get(ctx, receiptID)
}

// List returns receipts matching the filter, in append order.
func (s *Service) List(ctx context.Context, filter Filter) ([]Receipt, error) {
	return s.store.List(ctx, filter)
}
