package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"unitedhelp/internal/comment/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.CreateCommentRequest) (*models.Comment, error)
	List(ctx context.Context, eventID id.EventID) ([]*models.Comment, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/events/{id}/comments", h.HandleList)
	r.Post("/events/{id}/comments", h.HandleCreate)
}

type CommentResponse struct {
	ID        id.CommentID  `json:"id"`
	EventID   id.EventID    `json:"event_id"`
	UserID    id.UserID     `json:"user_id"`
	ParentID  *id.CommentID `json:"parent_id,omitempty"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}

func toResponse(c *models.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		EventID:   c.EventID,
		UserID:    c.UserID,
		ParentID:  c.ParentID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	comments, err := h.service.List(r.Context(), eventID)
	if err != nil {
		httputil.LogError(r, h.logger, "list comments failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateCommentRequest](w, r, h.logger)
	if !ok {
		return
	}
	comment, err := h.service.Create(r.Context(), userID, eventID, req)
	if err != nil {
		httputil.LogError(r, h.logger, "create comment failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(comment))
}

func eventIDParam(w http.ResponseWriter, r *http.Request) (id.EventID, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event id"))
		return id.EventID{}, false
	}
	return eventID, true
}
