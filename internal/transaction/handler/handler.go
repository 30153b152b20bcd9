package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/transaction/models"
	"tradeledger/internal/transaction/service"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, actorID id.UserID, in service.CreateInput) (*models.Transaction, error)
	Get(ctx context.Context, actorID id.UserID, transactionID id.TransactionID) (*models.Transaction, error)
	ListForUser(ctx context.Context, actorID, userID id.UserID) ([]*models.Transaction, error)
	Transition(ctx context.Context, actorID id.UserID, transactionID id.TransactionID, next models.Status) (*models.Transaction, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts transaction endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transactions", h.HandleCreate)
	r.Get("/transactions", h.HandleList)
	r.Get("/transactions/{id}", h.HandleGet)
	r.Patch("/transactions/{id}/status", h.HandleUpdateStatus)
}

// HandleCreate handles POST /transactions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tx, err := h.service.Create(ctx, actorID, req.input)
	if err != nil {
		h.logger.WarnContext(ctx, "transaction create rejected",
			"request_id", requestID,
			"actor_id", actorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTransaction(tx))
}

// HandleList handles GET /transactions?user_id=. Without a filter the
// caller's own transactions are listed.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	userID := actorID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		userID = parsed
	}

	txs, err := h.service.ListForUser(ctx, actorID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTransactions(txs))
}

// HandleGet handles GET /transactions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	transactionID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tx, err := h.service.Get(ctx, actorID, transactionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTransaction(tx))
}

// HandleUpdateStatus handles PATCH /transactions/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	transactionID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tx, err := h.service.Transition(ctx, actorID, transactionID, req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTransaction(tx))
}
