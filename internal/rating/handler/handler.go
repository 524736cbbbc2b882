package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"unitedhelp/internal/rating/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/requestcontext"
)

type Service interface {
	CastVote(ctx context.Context, voter id.UserID, eventID id.EventID, applicant id.ProfileID, score int) (*models.Voting, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{id}/votes", h.HandleCastVote)
}

type VoteResponse struct {
	ID        id.VotingID  `json:"id"`
	EventID   id.EventID   `json:"event_id"`
	Applicant id.ProfileID `json:"applicant"`
	Score     int          `json:"score"`
	CreatedAt time.Time    `json:"created_at"`
}

func (h *Handler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CastVoteRequest](w, r, h.logger)
	if !ok {
		return
	}

	vote, err := h.service.CastVote(r.Context(), userID, eventID, req.Applicant, *req.Score)
	if err != nil {
		httputil.LogError(r, h.logger, "cast vote failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, VoteResponse{
		ID:        vote.ID,
		EventID:   vote.EventID,
		Applicant: vote.Applicant,
		Score:     vote.Score,
		CreatedAt: vote.CreatedAt,
	})
}
