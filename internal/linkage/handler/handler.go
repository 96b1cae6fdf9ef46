package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kanon/internal/linkage"
	"kanon/pkg/domain"
	dErrors "kanon/pkg/domain-errors"
	"kanon/pkg/platform/httputil"
	"kanon/pkg/requestcontext"
)

// Service defines the interface for linkage risk reads.
type Service interface {
	History(ctx context.Context, requesterID domain.RequesterID) ([]linkage.RateLimitRecord, error)
}

// Handler exposes the requester's own linkage rate-limit history.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a linkage handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts linkage endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/linkage/history", h.HandleHistory)
}

// RateLimitResponse is one recorded linkage block.
type RateLimitResponse struct {
	ID              string    `json:"id"`
	QueryHash       string    `json:"query_hash"`
	SimilarityScore float64   `json:"similarity_score"`
	QueryCount      int       `json:"query_count"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	Blocked         bool      `json:"blocked"`
	CreatedAt       time.Time `json:"created_at"`
}

// HandleHistory handles GET /linkage/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requesterID := requestcontext.RequesterID(ctx)
	if requesterID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	records, err := h.service.History(ctx, requesterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]RateLimitResponse, len(records))
	for i, record := range records {
		out[i] = RateLimitResponse{
			ID:              record.ID,
			QueryHash:       record.QueryHash,
			SimilarityScore: record.SimilarityScore,
			QueryCount:      record.QueryCount,
			WindowStart:     record.WindowStart,
			WindowEnd:       record.WindowEnd,
			Blocked:         record.Blocked,
			CreatedAt:       record.CreatedAt,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
