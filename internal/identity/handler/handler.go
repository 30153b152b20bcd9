package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/identity/models"
	"tradeledger/internal/identity/service"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, bool, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the directory endpoints. Callers guard the router with
// the admin token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.HandleRegister)
	r.Get("/users/{id}", h.HandleGet)
}

// RegisterRequest is the body of POST /admin/users.
type RegisterRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role" validate:"required"`

	input service.RegisterInput
}

func (r *RegisterRequest) Validate() error {
	role, err := id.ParseRole(r.Role)
	if err != nil {
		return err
	}
	r.input.Role = role
	if r.UserID != "" {
		userID, err := id.ParseUserID(r.UserID)
		if err != nil {
			return err
		}
		r.input.UserID = userID
	}
	return nil
}

type UserResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromUser(u *models.User) *UserResponse {
	return &UserResponse{
		UserID:    u.ID.String(),
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HandleRegister handles POST /admin/users. 201 for a new user, 200 when an
// existing user's role was replaced.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, created, err := h.service.Register(ctx, req.input)
	if err != nil {
		h.logger.ErrorContext(ctx, "user registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, FromUser(user))
}

// HandleGet handles GET /admin/users/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}
