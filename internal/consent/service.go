package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kanon/internal/auditchain"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/sentinel"
	"kanon/pkg/requestcontext"
)

// Service manages the consent contract lifecycle and answers validity checks
// for the decision engine.
type Service struct {
	store  Store
	audit  *auditchain.Service
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the consent service.
func NewService(store Store, audit *auditchain.Service, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if audit == nil {
		return nil, errors.New("audit chain is required")
	}
	s := &Service{
		store:  store,
		audit:  audit,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Grant records a new consent contract.
func (s *Service) Grant(ctx context.Context, id domain.ConsentID, subjectID domain.DataSubjectID, purpose string, ttl time.Duration) (Record, error) {
	if id.IsNil() || subjectID.IsNil() {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "consent id and data subject id are required")
	}
	if purpose == "" {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "purpose is required")
	}

	if _, err := s.store.Get(ctx, id); err == nil {
		return Record{}, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("consent contract %s already exists", id))
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Record{}, fmt.Errorf("check consent contract: %w", err)
	}

	now := requestcontext.Now(ctx).UTC()
	record := Record{
		ID:            id,
		DataSubjectID: subjectID,
		Purpose:       purpose,
		Status:        StatusGranted,
		GrantedAt:     now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		record.ExpiresAt = &expires
	}
	if err := s.store.Put(ctx, record); err != nil {
		return Record{}, fmt.Errorf("store consent contract: %w", err)
	}

	s.appendReceipt(ctx, auditchain.EventConsentGranted, record, map[string]string{
		"purpose":    purpose,
		"granted_at": now.Format(time.RFC3339),
	})
	s.logger.InfoContext(ctx, "consent granted",
		"consent_id", id.String(),
		"data_subject_id", subjectID.String(),
		"purpose", purpose)
	return record, nil
}

// Revoke withdraws a granted contract. Revocation is permanent.
func (s *Service) Revoke(ctx context.Context, id domain.ConsentID) (Record, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if record.Status == StatusRevoked {
		return Record{}, dErrors.New(dErrors.CodeInvalidState, "consent contract is already revoked")
	}

	now := requestcontext.Now(ctx).UTC()
	record.Status = StatusRevoked
	record.RevokedAt = &now
	if err := s.store.Put(ctx, record); err != nil {
		return Record{}, fmt.Errorf("store consent contract: %w", err)
	}

	s.appendReceipt(ctx, auditchain.EventConsentRevoked, record, map[string]string{
		"revoked_at": now.Format(time.RFC3339),
	})
	s.logger.InfoContext(ctx, "consent revoked",
		"consent_id", id.String(),
		"data_subject_id", record.DataSubjectID.String())
	return record, nil
}

// Get returns the contract by id.
func (s *Service) Get(ctx context.Context, id domain.ConsentID) (Record, error) {
	record, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Record{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("consent contract %s not found", id))
	}
	if err != nil {
		return Record{}, fmt.Errorf("get consent contract: %w", err)
	}
	return record, nil
}

// ListBySubject returns all contracts for a data subject.
func (s *Service) ListBySubject(ctx context.Context, subjectID domain.DataSubjectID) ([]Record, error) {
	return s.store.ListBySubject(ctx, subjectID)
}

func (s *Service) appendReceipt(ctx context.Context, eventType auditchain.EventType, record Record, details map[string]string) {
	_, err := s.audit.Append(ctx, eventType,
		record.DataSubjectID.String(), auditchain.ActorDataSubject,
		record.ID.String(), "consent_contract",
		auditchain.DetailsHash(details))
	if err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"event_type", string(eventType), "error", err)
	}
}
