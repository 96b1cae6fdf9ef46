package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/pairwise"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for pairwise budget operations. The requester
// side of every pair key comes from the authenticated context, never from the
// request body.
type Service interface {
	Allocate(ctx context.Context, key pairwise.PairKey) (pairwise.Budget, error)
	Consume(ctx context.Context, key pairwise.PairKey, queryHash, queryType string, cost domain.Risk) (pairwise.Budget, error)
	Get(ctx context.Context, key pairwise.PairKey) (pairwise.Budget, error)
	RecentQueries(ctx context.Context, key pairwise.PairKey) ([]pairwise.QueryRecord, error)
}

// Handler wires pairwise budget endpoints to the pairwise service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a pairwise handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts pairwise endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pairwise/allocate", h.HandleAllocate)
	r.Post("/pairwise/consume", h.HandleConsume)
	r.Get("/pairwise/subjects/{dataSubjectID}", h.HandleGet)
	r.Get("/pairwise/subjects/{dataSubjectID}/queries", h.HandleRecentQueries)
}

// pairKey builds the pair key from the authenticated requester and the given
// data subject.
func pairKey(ctx context.Context, rawSubjectID string) (pairwise.PairKey, error) {
	requesterID := requestcontext.RequesterID(ctx)
	if requesterID.IsNil() {
		return pairwise.PairKey{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	subjectID, err := domain.ParseDataSubjectID(rawSubjectID)
	if err != nil {
		return pairwise.PairKey{}, dErrors.New(dErrors.CodeInvalidInput, "data_subject_id must be a valid uuid")
	}
	return pairwise.PairKey{DataSubjectID: subjectID, RequesterID: requesterID}, nil
}

// HandleAllocate handles POST /pairwise/allocate requests.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AllocateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	key, err := pairKey(ctx, req.DataSubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	budget, err := h.service.Allocate(ctx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "pairwise allocation failed",
			"request_id", requestID,
			"pair", key.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromBudget(budget))
}

// HandleConsume handles POST /pairwise/consume requests.
func (h *Handler) HandleConsume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ConsumeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	key, err := pairKey(ctx, req.DataSubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	budget, err := h.service.Consume(ctx, key, req.QueryHash, req.QueryType, req.ParsedCost())
	if err != nil {
		h.logger.WarnContext(ctx, "pairwise consumption refused",
			"request_id", requestID,
			"pair", key.String(),
			"cost", req.Cost,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pairwise budget consumed",
		"request_id", requestID,
		"pair", key.String(),
		"cost", req.Cost,
		"remaining", budget.Remaining().String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromBudget(budget))
}

// HandleGet handles GET /pairwise/subjects/{dataSubjectID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := pairKey(ctx, chi.URLParam(r, "dataSubjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	budget, err := h.service.Get(ctx, key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBudget(budget))
}

// HandleRecentQueries handles GET /pairwise/subjects/{dataSubjectID}/queries requests.
func (h *Handler) HandleRecentQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := pairKey(ctx, chi.URLParam(r, "dataSubjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.RecentQueries(ctx, key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromQueryRecords(records))
}
