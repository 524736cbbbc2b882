// Package handler exposes events, their lifecycle transitions, cities and the
// externally timed sweeps over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/service"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/requestcontext"
)

const maxPageSize = 100

type Service interface {
	Create(ctx context.Context, userID id.UserID, req *models.CreateEventRequest) (*models.Event, error)
	Edit(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.UpdateEventRequest) (*models.Event, error)
	Get(ctx context.Context, eventID id.EventID) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	ListSubscribed(ctx context.Context, userID id.UserID) ([]*models.Event, error)
	ListAttended(ctx context.Context, userID id.UserID) ([]*models.Event, error)
	ListCreated(ctx context.Context, userID id.UserID) ([]*models.Event, error)
	Logs(ctx context.Context, userID id.UserID, eventID id.EventID) ([]*models.EventLog, error)
	Finished(ctx context.Context, userID id.UserID) ([]*models.FinishedSummary, error)

	Subscribe(ctx context.Context, userID id.UserID, eventID id.EventID) (*models.Event, error)
	Unsubscribe(ctx context.Context, userID id.UserID, eventID id.EventID) error
	Finish(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.FinishEventRequest) (*models.Event, *models.EventLog, error)
	Cancel(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.CancelEventRequest) (*models.Event, *models.EventLog, error)
	Activate(ctx context.Context, userID id.UserID, eventID id.EventID) (*models.Event, error)

	CreateCity(ctx context.Context, req *models.CreateCityRequest) (*models.City, error)
	ListCities(ctx context.Context) ([]*models.City, error)

	SweepFinished(ctx context.Context) (*service.SweepResult, error)
	SweepStartTomorrow(ctx context.Context) (*service.SweepResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public routes. Writes need an authenticated user.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.HandleList)
	r.Post("/events", h.HandleCreate)
	r.Get("/events/subscribed", h.HandleListSubscribed)
	r.Get("/events/attended", h.HandleListAttended)
	r.Get("/events/created", h.HandleListCreated)
	r.Get("/events/finished", h.HandleFinished)
	r.Get("/events/{id}", h.HandleGet)
	r.Patch("/events/{id}", h.HandleEdit)
	r.Get("/events/{id}/logs", h.HandleLogs)
	r.Post("/events/{id}/subscribe", h.HandleSubscribe)
	r.Post("/events/{id}/unsubscribe", h.HandleUnsubscribe)
	r.Post("/events/{id}/finish", h.HandleFinish)
	r.Post("/events/{id}/cancel", h.HandleCancel)
	r.Post("/events/{id}/activate", h.HandleActivate)

	r.Get("/cities", h.HandleListCities)
}

// RegisterAdmin mounts city creation and the sweep triggers. The caller guards r.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/cities", h.HandleCreateCity)
	r.Post("/internal/sweeps/event-finished", h.HandleSweepFinished)
	r.Post("/internal/sweeps/event-start-tomorrow", h.HandleSweepStartTomorrow)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateEventRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		httputil.LogError(r, h.logger, "create event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateEventRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, err := h.service.Edit(r.Context(), userID, eventID, req)
	if err != nil {
		httputil.LogError(r, h.logger, "edit event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	event, err := h.service.Get(r.Context(), eventID)
	if err != nil {
		httputil.LogError(r, h.logger, "get event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.LogError(r, h.logger, "list events failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

func (h *Handler) HandleListSubscribed(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, "list subscribed events failed", h.service.ListSubscribed)
}

func (h *Handler) HandleListAttended(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, "list attended events failed", h.service.ListAttended)
}

func (h *Handler) HandleListCreated(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, "list created events failed", h.service.ListCreated)
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request, failMsg string, list func(context.Context, id.UserID) ([]*models.Event, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	events, err := list(r.Context(), userID)
	if err != nil {
		httputil.LogError(r, h.logger, failMsg, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

func (h *Handler) HandleFinished(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summaries, err := h.service.Finished(r.Context(), userID)
	if err != nil {
		httputil.LogError(r, h.logger, "list finished events failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]FinishedEventResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toFinishedResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	logs, err := h.service.Logs(r.Context(), userID, eventID)
	if err != nil {
		httputil.LogError(r, h.logger, "list event logs failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]EventLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toEventLogResponse(l))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	event, err := h.service.Subscribe(r.Context(), userID, eventID)
	if err != nil {
		httputil.LogError(r, h.logger, "subscribe failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Unsubscribe(r.Context(), userID, eventID); err != nil {
		httputil.LogError(r, h.logger, "unsubscribe failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.FinishEventRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, log, err := h.service.Finish(r.Context(), userID, eventID, req)
	if err != nil {
		httputil.LogError(r, h.logger, "finish event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TransitionResponse{Event: toEventResponse(event), Log: toEventLogResponse(log)})
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CancelEventRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, log, err := h.service.Cancel(r.Context(), userID, eventID, req)
	if err != nil {
		httputil.LogError(r, h.logger, "cancel event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TransitionResponse{Event: toEventResponse(event), Log: toEventLogResponse(log)})
}

func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	event, err := h.service.Activate(r.Context(), userID, eventID)
	if err != nil {
		httputil.LogError(r, h.logger, "activate event failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) HandleListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.service.ListCities(r.Context())
	if err != nil {
		httputil.LogError(r, h.logger, "list cities failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]CityResponse, 0, len(cities))
	for _, c := range cities {
		out = append(out, toCityResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCreateCity(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[models.CreateCityRequest](w, r, h.logger)
	if !ok {
		return
	}
	city, err := h.service.CreateCity(r.Context(), req)
	if err != nil {
		httputil.LogError(r, h.logger, "create city failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCityResponse(city))
}

func (h *Handler) HandleSweepFinished(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "finish sweep failed", h.service.SweepFinished)
}

func (h *Handler) HandleSweepStartTomorrow(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "start-tomorrow sweep failed", h.service.SweepStartTomorrow)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request, failMsg string, run func(context.Context) (*service.SweepResult, error)) {
	result, err := run(r.Context())
	if err != nil {
		httputil.LogError(r, h.logger, failMsg, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSweepResponse(result))
}

func requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func eventIDParam(w http.ResponseWriter, r *http.Request) (id.EventID, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event id"))
		return id.EventID{}, false
	}
	return eventID, true
}

// parseFilter reads the listing predicates from the query string.
func parseFilter(r *http.Request) (models.EventFilter, error) {
	q := r.URL.Query()
	filter := models.EventFilter{
		Query:      q.Get("q"),
		Employment: models.Employment(q.Get("employment")),
		City:       q.Get("city"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "active must be a boolean")
		}
		filter.Active = &active
	}
	if filter.Employment != "" && !filter.Employment.IsValid() {
		return filter, dErrors.New(dErrors.CodeBadRequest, "employment must be one of full, part, one_time")
	}
	if v := q.Get("skill"); v != "" {
		skill, err := id.ParseSkillID(v)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid skill id")
		}
		filter.Skill = &skill
	}
	var err error
	if filter.StartAfter, err = parseTime(q.Get("start_after"), "start_after"); err != nil {
		return filter, err
	}
	if filter.EndBefore, err = parseTime(q.Get("end_before"), "end_before"); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseInt(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return filter, nil
}

func parseTime(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, name+" must be RFC 3339")
	}
	return &t, nil
}

func parseInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
