package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/policy"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for policy evaluation. Evaluate is total: it
// returns a decision for every input and never an error.
type Service interface {
	Evaluate(ctx context.Context, pc policy.Context) policy.PolicyDecision
	History(ctx context.Context, requesterID string) ([]policy.DecisionReceipt, error)
}

// Handler wires policy endpoints to the decision engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a policy handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policy/evaluate", h.HandleEvaluate)
	r.Get("/policy/decisions", h.HandleDecisions)
}

// HandleEvaluate handles POST /policy/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	requesterID := requestcontext.RequesterID(ctx)
	if requesterID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision := h.service.Evaluate(ctx, req.PolicyContext(requesterID))

	h.logger.InfoContext(ctx, "policy evaluated",
		"request_id", requestID,
		"requester_id", requesterID.String(),
		"resource_type", req.ResourceType,
		"action", req.Action,
		"decision", decision.Type(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// A denial is a well-formed answer, not an HTTP failure.
	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}

// HandleDecisions handles GET /policy/decisions requests. It returns the
// authenticated requester's own decision history.
func (h *Handler) HandleDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requesterID := requestcontext.RequesterID(ctx)
	if requesterID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	receipts, err := h.service.History(ctx, requesterID.String())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromReceipts(receipts))
}
