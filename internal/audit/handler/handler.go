package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tradeledger/internal/audit/service"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
	"tradeledger/pkg/platform/httputil"
)

type Service interface {
	List(ctx context.Context, q service.Query) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts GET /audit. Callers guard the router with the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
}

type EventResponse struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	Action      string    `json:"action"`
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

type EventListResponse struct {
	Events []*EventResponse `json:"events"`
}

func FromEvents(events []audit.Event) *EventListResponse {
	out := &EventListResponse{Events: make([]*EventResponse, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, &EventResponse{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			ActorID:     e.ActorID.String(),
			ActorRole:   string(e.ActorRole),
			Action:      string(e.Action),
			SubjectType: e.SubjectType,
			SubjectID:   e.SubjectID,
			From:        e.From,
			To:          e.To,
			Reason:      e.Reason,
			RequestID:   e.RequestID,
		})
	}
	return out
}

// HandleList handles GET /admin/audit?subject_type=&subject_id=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := service.Query{
		SubjectType: query.Get("subject_type"),
		SubjectID:   query.Get("subject_id"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be an integer"))
			return
		}
		q.Limit = limit
	}

	events, err := h.service.List(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}
