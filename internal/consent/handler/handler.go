package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/consent"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for consent lifecycle operations.
type Service interface {
	Grant(ctx context.Context, id domain.ConsentID, subjectID domain.DataSubjectID, purpose string, ttl time.Duration) (consent.Record, error)
	Revoke(ctx context.Context, id domain.ConsentID) (consent.Record, error)
	Get(ctx context.Context, id domain.ConsentID) (consent.Record, error)
	ListBySubject(ctx context.Context, subjectID domain.DataSubjectID) ([]consent.Record, error)
}

// Handler wires consent endpoints to the consent service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a consent handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts consent endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent/grant", h.HandleGrant)
	r.Post("/consent/{consentID}/revoke", h.HandleRevoke)
	r.Get("/consent/{consentID}", h.HandleGet)
	r.Get("/consent/subjects/{dataSubjectID}", h.HandleListBySubject)
}

// GrantRequest is the HTTP request body for POST /consent/grant.
type GrantRequest struct {
	ConsentID     string `json:"consent_id"`
	DataSubjectID string `json:"data_subject_id"`
	Purpose       string `json:"purpose"`
	TTLSeconds    int64  `json:"ttl_seconds"`

	// Parsed values (populated by Validate)
	parsedConsentID domain.ConsentID
	parsedSubjectID domain.DataSubjectID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GrantRequest) Validate() error {
	consentID, err := domain.ParseConsentID(strings.TrimSpace(r.ConsentID))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "consent_id must be a valid uuid")
	}
	subjectID, err := domain.ParseDataSubjectID(strings.TrimSpace(r.DataSubjectID))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "data_subject_id must be a valid uuid")
	}
	purpose, err := domain.ParseConsentPurpose(r.Purpose)
	if err != nil {
		return err
	}
	r.Purpose = purpose.String()
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "ttl_seconds must be non-negative")
	}
	r.parsedConsentID = consentID
	r.parsedSubjectID = subjectID
	return nil
}

// RecordResponse is the HTTP representation of a consent contract.
type RecordResponse struct {
	ConsentID     string     `json:"consent_id"`
	DataSubjectID string     `json:"data_subject_id"`
	Purpose       string     `json:"purpose"`
	Status        string     `json:"status"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// FromRecord converts a consent record to its HTTP representation.
func FromRecord(r consent.Record) RecordResponse {
	return RecordResponse{
		ConsentID:     r.ID.String(),
		DataSubjectID: r.DataSubjectID.String(),
		Purpose:       r.Purpose,
		Status:        string(r.Status),
		GrantedAt:     r.GrantedAt,
		ExpiresAt:     r.ExpiresAt,
		RevokedAt:     r.RevokedAt,
	}
}

func consentIDParam(r *http.Request) (domain.ConsentID, error) {
	id, err := domain.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		return domain.ConsentID{}, dErrors.New(dErrors.CodeInvalidInput, "consent id must be a valid uuid")
	}
	return id, nil
}

// HandleGrant handles POST /consent/grant requests.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Grant(ctx, req.parsedConsentID, req.parsedSubjectID,
		req.Purpose, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.logger.WarnContext(ctx, "consent grant failed",
			"request_id", requestID,
			"consent_id", req.ConsentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromRecord(record))
}

// HandleRevoke handles POST /consent/{consentID}/revoke requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := consentIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Revoke(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "consent revocation failed",
			"request_id", requestID,
			"consent_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleGet handles GET /consent/{consentID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := consentIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleListBySubject handles GET /consent/subjects/{dataSubjectID} requests.
func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := domain.ParseDataSubjectID(chi.URLParam(r, "dataSubjectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "data subject id must be a valid uuid"))
		return
	}

	records, err := h.service.ListBySubject(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]RecordResponse, len(records))
	for i, record := range records {
		out[i] = FromRecord(record)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
