package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

type Service interface {
	ComputeRisk(ctx context.Context, actorID, userID id.UserID, trigger models.Trigger) (*models.Result, error)
	ListRiskScores(ctx context.Context, actorID id.UserID, filter *id.UserID) ([]*models.Score, error)
	History(ctx context.Context, actorID, userID id.UserID) ([]*models.HistoryRecord, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts risk endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/risk/compute", h.HandleCompute)
	r.Get("/risk/scores", h.HandleListScores)
	r.Get("/risk/scores/{user_id}/history", h.HandleHistory)
}

// HandleCompute handles POST /risk/compute.
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ComputeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ComputeRisk(ctx, actorID, req.parsedUserID, req.parsedTrigger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleListScores handles GET /risk/scores with an optional user_id filter.
func (h *Handler) HandleListScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var filter *id.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter = &userID
	}

	scores, err := h.service.ListRiskScores(ctx, actorID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromScores(scores))
}

// HandleHistory handles GET /risk/scores/{user_id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.History(ctx, actorID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(userID.String(), records))
}
