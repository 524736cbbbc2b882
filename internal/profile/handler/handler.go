package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/requestcontext"
)

// Service defines the profile operations exposed over HTTP.
type Service interface {
	CreateProfile(ctx context.Context, userID id.UserID, req *models.CreateProfileRequest) (*models.Profile, error)
	Me(ctx context.Context, userID id.UserID) (*models.User, []*models.Profile, error)
	GetProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	ToggleProfileActive(ctx context.Context, callerID id.UserID, profileID id.ProfileID) (*models.Profile, error)
	Follow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error
	Unfollow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error
	AddDeviceToken(ctx context.Context, userID id.UserID, token string) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts profile endpoints. The router is expected to carry auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/profiles", h.HandleCreateProfile)
	r.Get("/profiles/me", h.HandleMe)
	r.Get("/profiles/{id}", h.HandleGetProfile)
	r.Post("/profiles/{id}/activate", h.HandleToggleActive)
	r.Post("/profiles/{id}/subscribe", h.HandleFollow)
	r.Post("/profiles/{id}/unsubscribe", h.HandleUnfollow)
	r.Post("/users/me/device-tokens", h.HandleAddDeviceToken)
}

func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req models.CreateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	profile, err := h.service.CreateProfile(r.Context(), userID, &req)
	if err != nil {
		httputil.LogError(r, h.logger, "create profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	user, profiles, err := h.service.Me(r.Context(), userID)
	if err != nil {
		httputil.LogError(r, h.logger, "load caller failed", err)
		httputil.WriteError(w, err)
		return
	}
	resp := MeResponse{User: toUserResponse(user), Profiles: make([]ProfileResponse, 0, len(profiles))}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, toProfileResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), profileID)
	if err != nil {
		httputil.LogError(r, h.logger, "get profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) HandleToggleActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	profileID, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.service.ToggleProfileActive(r.Context(), userID, profileID)
	if err != nil {
		httputil.LogError(r, h.logger, "toggle profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, h.service.Follow)
}

func (h *Handler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, h.service.Unfollow)
}

func (h *Handler) handleFollowChange(w http.ResponseWriter, r *http.Request, op func(context.Context, id.UserID, id.ProfileID) error) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	profileID, ok := h.profileIDParam(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), userID, profileID); err != nil {
		httputil.LogError(r, h.logger, "follow change failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddDeviceToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DeviceTokenRequest](w, r, h.logger)
	if !ok {
		return
	}
	user, err := h.service.AddDeviceToken(r.Context(), userID, req.Token)
	if err != nil {
		httputil.LogError(r, h.logger, "add device token failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) profileIDParam(w http.ResponseWriter, r *http.Request) (id.ProfileID, bool) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return id.ProfileID{}, false
	}
	return profileID, true
}
