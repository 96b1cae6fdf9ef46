package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kanon/internal/cohort"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for cohort size operations.
type Service interface {
	Check(ctx context.Context, criteria cohort.Criteria, kMin int) (cohort.CheckResult, error)
	Estimate(ctx context.Context, criteria cohort.Criteria) (int, error)
}

// Handler wires cohort endpoints to the cohort service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a cohort handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts cohort endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cohort/check", h.HandleCheck)
	r.Post("/cohort/estimate", h.HandleEstimate)
}

// CheckRequest is the HTTP request body for POST /cohort/check.
type CheckRequest struct {
	Criteria map[string]string `json:"criteria"`
	KMin     int               `json:"k_min,omitempty"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckRequest) Validate() error {
	if len(r.Criteria) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "criteria is required")
	}
	if r.KMin < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "k_min must be non-negative")
	}
	return nil
}

// EstimateResponse is the HTTP response for POST /cohort/estimate.
type EstimateResponse struct {
	CohortSize int `json:"cohort_size"`
}

// HandleCheck handles POST /cohort/check requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Check(ctx, cohort.Criteria(req.Criteria), req.KMin)
	if err != nil {
		h.logger.WarnContext(ctx, "cohort check failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleEstimate handles POST /cohort/estimate requests. Estimates bypass the
// cache and never emit block receipts.
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	size, err := h.service.Estimate(ctx, cohort.Criteria(req.Criteria))
	if err != nil {
		h.logger.WarnContext(ctx, "cohort estimate failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, EstimateResponse{CohortSize: size})
}
