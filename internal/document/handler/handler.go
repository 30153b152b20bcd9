package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/document/models"
	"tradeledger/internal/document/service"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

// maxUploadBody leaves room for base64 expansion of the content limit.
const maxUploadBody = service.MaxContentBytes*4/3 + 64<<10

type Service interface {
	Upload(ctx context.Context, actorID id.UserID, in service.UploadInput) (*models.Document, error)
	Get(ctx context.Context, actorID id.UserID, documentID id.DocumentID) (*models.Document, error)
	Verify(ctx context.Context, actorID id.UserID, documentID id.DocumentID) (*models.VerificationResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents", h.HandleUpload)
	r.Get("/documents/{id}", h.HandleGet)
	r.Post("/documents/{id}/verify", h.HandleVerify)
}

// HandleUpload handles POST /documents.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID := requestcontext.UserID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepareLimit[UploadRequest](w, r, h.logger, ctx, requestID, maxUploadBody)
	if !ok {
		return
	}

	doc, err := h.service.Upload(ctx, actorID, req.input)
	if err != nil {
		h.logger.WarnContext(ctx, "document upload rejected",
			"request_id", requestID,
			"actor_id", actorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

// HandleGet handles GET /documents/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

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

	doc, err := h.service.Get(ctx, actorID, documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleVerify handles POST /documents/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.Verify(ctx, actorID, documentID)
	if err != nil {
		h.logger.WarnContext(ctx, "document verification failed",
			"request_id", requestID,
			"document_id", documentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerification(result))
}
