package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/prb"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for campaign budget operations.
type Service interface {
	Allocate(ctx context.Context, campaignID domain.CampaignID, profile *prb.RiskProfile) (prb.Budget, error)
	Lock(ctx context.Context, campaignID domain.CampaignID) (prb.Budget, error)
	Consume(ctx context.Context, campaignID domain.CampaignID, transformID, operationType string, cost domain.Risk) (prb.Budget, error)
	Get(ctx context.Context, campaignID domain.CampaignID) (prb.Budget, error)
	Consumptions(ctx context.Context, campaignID domain.CampaignID) ([]prb.ConsumptionEntry, error)
}

// Handler wires campaign budget endpoints to the budget service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a budget handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts budget endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/prb/campaigns/{campaignID}/allocate", h.HandleAllocate)
	r.Post("/prb/campaigns/{campaignID}/lock", h.HandleLock)
	r.Post("/prb/campaigns/{campaignID}/consume", h.HandleConsume)
	r.Get("/prb/campaigns/{campaignID}", h.HandleGet)
	r.Get("/prb/campaigns/{campaignID}/consumptions", h.HandleConsumptions)
}

func campaignIDParam(r *http.Request) (domain.CampaignID, error) {
	raw := chi.URLParam(r, "campaignID")
	campaignID, err := domain.ParseCampaignID(raw)
	if err != nil {
		return domain.CampaignID{}, dErrors.New(dErrors.CodeInvalidInput, "campaign id must be a valid uuid")
	}
	return campaignID, nil
}

// HandleAllocate handles POST /prb/campaigns/{campaignID}/allocate requests.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	campaignID, err := campaignIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AllocateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	budget, err := h.service.Allocate(ctx, campaignID, req.Profile())
	if err != nil {
		h.logger.ErrorContext(ctx, "budget allocation failed",
			"request_id", requestID,
			"campaign_id", campaignID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromBudget(budget))
}

// HandleLock handles POST /prb/campaigns/{campaignID}/lock requests.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	campaignID, err := campaignIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	budget, err := h.service.Lock(ctx, campaignID)
	if err != nil {
		h.logger.ErrorContext(ctx, "budget lock failed",
			"request_id", requestID,
			"campaign_id", campaignID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBudget(budget))
}

// HandleConsume handles POST /prb/campaigns/{campaignID}/consume requests.
func (h *Handler) HandleConsume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	campaignID, err := campaignIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ConsumeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	budget, err := h.service.Consume(ctx, campaignID, req.TransformID, req.OperationType, req.ParsedCost())
	if err != nil {
		h.logger.WarnContext(ctx, "budget consumption refused",
			"request_id", requestID,
			"campaign_id", campaignID.String(),
			"cost", req.Cost,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "budget consumed",
		"request_id", requestID,
		"campaign_id", campaignID.String(),
		"cost", req.Cost,
		"remaining", budget.Remaining().String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromBudget(budget))
}

// HandleGet handles GET /prb/campaigns/{campaignID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	campaignID, err := campaignIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	budget, err := h.service.Get(ctx, campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBudget(budget))
}

// HandleConsumptions handles GET /prb/campaigns/{campaignID}/consumptions requests.
func (h *Handler) HandleConsumptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	campaignID, err := campaignIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.Consumptions(ctx, campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromConsumptions(entries))
}
