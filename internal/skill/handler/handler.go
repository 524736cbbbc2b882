package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unitedhelp/internal/skill/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateSkillRequest) (*models.Skill, error)
	List(ctx context.Context) ([]*models.Skill, error)
	SetParents(ctx context.Context, skillID id.SkillID, parents []id.SkillID) (*models.Skill, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/skills", h.HandleList)
}

// RegisterAdmin mounts taxonomy writes. The router must carry the admin token guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/skills", h.HandleCreate)
	r.Put("/skills/{id}/parents", h.HandleSetParents)
}

type SkillResponse struct {
	ID      id.SkillID   `json:"id"`
	Name    string       `json:"name"`
	Parents []id.SkillID `json:"parents"`
}

func toResponse(s *models.Skill) SkillResponse {
	parents := s.Parents
	if parents == nil {
		parents = []id.SkillID{}
	}
	return SkillResponse{ID: s.ID, Name: s.Name, Parents: parents}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	skills, err := h.service.List(r.Context())
	if err != nil {
		httputil.LogError(r, h.logger, "list skills failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]SkillResponse, 0, len(skills))
	for _, s := range skills {
		out = append(out, toResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.CreateSkillRequest](w, r, h.logger)
	if !ok {
		return
	}
	skill, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.LogError(r, h.logger, "create skill failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(skill))
}

func (h *Handler) HandleSetParents(w http.ResponseWriter, r *http.Request) {
	skillID, err := id.ParseSkillID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid skill id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetParentsRequest](w, r, h.logger)
	if !ok {
		return
	}
	skill, err := h.service.SetParents(r.Context(), skillID, req.Parents)
	if err != nil {
		httputil.LogError(r, h.logger, "set skill parents failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(skill))
}
