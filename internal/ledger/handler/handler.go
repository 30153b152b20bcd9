package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/ledger/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

// Service is the caller-facing ledger API.
type Service interface {
	RecordAction(ctx context.Context, actorID id.UserID, documentID id.DocumentID, action models.Action, metadata map[string]string) (*models.Entry, error)
	History(ctx context.Context, actorID id.UserID, documentID id.DocumentID) ([]*models.Entry, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/documents/{id}/ledger", h.HandleList)
	r.Post("/documents/{id}/ledger", h.HandleRecord)
}

// HandleList handles GET /documents/{id}/ledger.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.History(ctx, requestcontext.UserID(ctx), documentID)
	if err != nil {
		h.logger.WarnContext(ctx, "ledger list failed",
			"request_id", requestID,
			"document_id", documentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(documentID, entries))
}

// HandleRecord handles POST /documents/{id}/ledger.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.RecordAction(ctx, actorID, documentID, req.parsedAction, req.Metadata)
	if err != nil {
		h.logger.WarnContext(ctx, "ledger record failed",
			"request_id", requestID,
			"document_id", documentID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ledger action recorded",
		"request_id", requestID,
		"document_id", documentID,
		"action", entry.Action,
		"actor_id", actorID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromEntry(entry))
}
