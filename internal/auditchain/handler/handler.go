package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/auditchain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
)

// Service defines the interface for audit chain reads and verification.
type Service interface {
	Get(ctx context.Context, receiptID string) (auditchain.Receipt, error)
	List(ctx context.Context, filter auditchain.Filter) ([]auditchain.Receipt, error)
	Verify(ctx context.Context) (auditchain.VerifyResult, error)
	VerifyReceipt(ctx context.Context, receiptID string) (auditchain.ReceiptCheck, error)
}

// Handler wires audit chain endpoints to the audit service. All endpoints are
// read-only; receipts are appended only by the services that own the events.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/receipts", h.HandleList)
	r.Get("/audit/receipts/{receiptID}", h.HandleGet)
	r.Get("/audit/receipts/{receiptID}/verify", h.HandleVerifyReceipt)
	r.Get("/audit/verify", h.HandleVerify)
}

const maxListLimit = 1000

// filterFromQuery builds a receipt filter from the request's query string.
func filterFromQuery(r *http.Request) (auditchain.Filter, error) {
	q := r.URL.Query()
	filter := auditchain.Filter{
		ActorID:    q.Get("actor_id"),
		ResourceID: q.Get("resource_id"),
		EventType:  auditchain.EventType(q.Get("event_type")),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return auditchain.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "from must be an RFC3339 timestamp")
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return auditchain.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "to must be an RFC3339 timestamp")
		}
		filter.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return auditchain.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if filter.Limit == 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return filter, nil
}

// HandleList handles GET /audit/receipts requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipts, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromReceipts(receipts))
}

// HandleGet handles GET /audit/receipts/{receiptID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	receipt, err := h.service.Get(ctx, chi.URLParam(r, "receiptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromReceipt(receipt))
}

// HandleVerify handles GET /audit/verify requests. It replays the whole chain
// from genesis.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Verify(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "chain verification failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		Valid:       result.Valid,
		Length:      result.Length,
		FirstBroken: result.FirstBroken,
		Reason:      result.Reason,
	})
}

// HandleVerifyReceipt handles GET /audit/receipts/{receiptID}/verify requests.
func (h *Handler) HandleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	check, err := h.service.VerifyReceipt(ctx, chi.URLParam(r, "receiptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ReceiptCheckResponse{
		ReceiptID: check.ReceiptID,
		HashValid: check.HashValid,
		LinkValid: check.LinkValid,
		Valid:     check.Valid,
	})
}
