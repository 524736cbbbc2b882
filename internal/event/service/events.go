package service

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"unitedhelp/internal/admission"
	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/store"
	pmodels "unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

// summaryConcurrency bounds parallel lookups when building finished summaries.
const summaryConcurrency = 8

// Create publishes a new active event owned by the caller's organizer profile.
func (s *Service) Create(ctx context.Context, userID id.UserID, req *models.CreateEventRequest) (*models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "event.create")
	defer span.End()

	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	owner, err := s.admit(ctx, identity, nil, admission.ActionCreate)
	if err != nil {
		return nil, err
	}
	if err := s.checkCity(ctx, s.events, req.CityID); err != nil {
		return nil, err
	}
	if err := s.checkSkills(ctx, req.Skills); err != nil {
		return nil, err
	}

	event, err := models.NewEvent(id.NewEventID(), owner.ID, req.Name, req.StartTime, req.EndTime,
		req.Employment, req.To, req.RequiredMembers, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	event.Description = req.Description
	event.Image = req.Image
	event.CityID = req.CityID
	event.Location = req.Location
	event.Skills = slices.Clone(req.Skills)

	if err := s.events.Create(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
	}
	span.SetAttributes(attribute.String("event.id", event.ID.String()))

	s.logAudit(ctx, string(audit.EventEventCreated),
		"user_id", userID.String(),
		"event_id", event.ID.String(),
		"actor_id", owner.ID.String(),
	)
	s.resolveLocation(ctx, event)
	return event, nil
}

// Edit applies an owner's partial update. A changed location drops the
// cached coordinates and resolves them again after commit.
func (s *Service) Edit(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.UpdateEventRequest) (*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		updated         *models.Event
		locationChanged bool
		actor           *pmodels.Profile
	)
	err = s.transition(ctx, admission.ActionEdit, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if actor, err = s.admit(ctx, identity, event, admission.ActionEdit); err != nil {
			return err
		}
		if err := s.checkCity(ctx, tx, req.CityID); err != nil {
			return err
		}
		if req.Skills != nil {
			if err := s.checkSkills(ctx, *req.Skills); err != nil {
				return err
			}
		}
		if locationChanged, err = req.Apply(event); err != nil {
			return err
		}
		if err := tx.Update(ctx, event); err != nil {
			return translateStoreErr(err, "failed to update event")
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventEventUpdated),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actor.ID.String(),
	)
	if locationChanged {
		s.resolveLocation(ctx, updated)
	}
	return updated, nil
}

// Get returns one event. Missing coordinates are resolved on the way out.
func (s *Service) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	event, err := loadEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	if !event.HasCoordinates() {
		s.resolveLocation(ctx, event)
	}
	return event, nil
}

// listResolveLimit caps geocoder lookups per listing. Events past the cap are
// filled on a later read.
const listResolveLimit = 5

func (s *Service) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	s.backfillLocations(ctx, events)
	return events, nil
}

func (s *Service) backfillLocations(ctx context.Context, events []*models.Event) {
	if s.resolver == nil {
		return
	}
	budget := listResolveLimit
	for _, event := range events {
		if budget == 0 {
			return
		}
		if event.Location == "" || event.HasCoordinates() {
			continue
		}
		budget--
		s.resolveLocation(ctx, event)
	}
}

// ListSubscribed returns events any of the caller's profiles participates in.
func (s *Service) ListSubscribed(ctx context.Context, userID id.UserID) ([]*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := idsOf(identity.Profiles)
	if len(ids) == 0 {
		return []*models.Event{}, nil
	}
	return s.List(ctx, models.EventFilter{Participants: ids})
}

// ListAttended returns events where the caller was confirmed as attended.
func (s *Service) ListAttended(ctx context.Context, userID id.UserID) ([]*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := idsOf(identity.Profiles)
	if len(ids) == 0 {
		return []*models.Event{}, nil
	}
	events, err := s.events.ListAttended(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attended events")
	}
	return events, nil
}

// ListCreated returns events owned by the caller's organizer profile.
func (s *Service) ListCreated(ctx context.Context, userID id.UserID) ([]*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	organizer := organizerOf(identity)
	if organizer == nil {
		return []*models.Event{}, nil
	}
	return s.List(ctx, models.EventFilter{Owner: &organizer.ID})
}

// Logs returns the terminal history of an event to its owner.
func (s *Service) Logs(ctx context.Context, userID id.UserID, eventID id.EventID) ([]*models.EventLog, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.admit(ctx, identity, event, admission.ActionEdit); err != nil {
		return nil, err
	}
	logs, err := s.events.ListLogs(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list event logs")
	}
	return logs, nil
}

// Finished lists the caller's events whose latest log is a finish, with
// participation, comment and rating figures.
func (s *Service) Finished(ctx context.Context, userID id.UserID) ([]*models.FinishedSummary, error) {
	ctx, span := s.tracer.Start(ctx, "event.finished", trace.WithAttributes(
		attribute.String("user.id", userID.String())))
	defer span.End()

	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	organizer := organizerOf(identity)
	if organizer == nil {
		return []*models.FinishedSummary{}, nil
	}
	events, err := s.List(ctx, models.EventFilter{Owner: &organizer.ID})
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.FinishedSummary, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, event := range events {
		g.Go(func() error {
			summary, err := s.summarize(gctx, event)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*models.FinishedSummary, 0, len(summaries))
	for _, summary := range summaries {
		if summary != nil {
			out = append(out, summary)
		}
	}
	return out, nil
}

// summarize returns nil when the event has not finished.
func (s *Service) summarize(ctx context.Context, event *models.Event) (*models.FinishedSummary, error) {
	latest, err := s.events.LatestLog(ctx, event.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event log")
	}
	if !latest.Happened {
		return nil, nil
	}

	summary := &models.FinishedSummary{
		Event:             event,
		Log:               latest,
		SubscribedMembers: len(latest.Subscribed),
	}
	if s.comments != nil {
		if summary.CommentsCount, err = s.comments.CountByEvent(ctx, event.ID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count comments")
		}
	}
	if s.ratings != nil {
		if summary.Rating, err = s.ratings.RatingOf(ctx, event.Owner); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rating")
		}
	}
	return summary, nil
}

func (s *Service) CreateCity(ctx context.Context, req *models.CreateCityRequest) (*models.City, error) {
	city := &models.City{ID: id.NewCityID(), Name: req.Name, Alias: req.Alias}
	if err := s.events.CreateCity(ctx, city); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "city already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create city")
	}
	return city, nil
}

func (s *Service) ListCities(ctx context.Context) ([]*models.City, error) {
	cities, err := s.events.ListCities(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cities")
	}
	return cities, nil
}

func (s *Service) checkCity(ctx context.Context, st store.Store, cityID *id.CityID) error {
	if cityID == nil {
		return nil
	}
	if _, err := st.FindCity(ctx, *cityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "unknown city")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load city")
	}
	return nil
}

func (s *Service) checkSkills(ctx context.Context, skills []id.SkillID) error {
	if s.skills == nil {
		return nil
	}
	for _, skillID := range skills {
		if _, err := s.skills.FindByID(ctx, skillID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "unknown skill "+skillID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load skill")
		}
	}
	return nil
}

// resolveLocation geocodes event.Location and caches the result on the event.
// Failures leave the event without coordinates so the next read retries.
func (s *Service) resolveLocation(ctx context.Context, event *models.Event) {
	if s.resolver == nil || event.Location == "" {
		return
	}
	result, err := s.resolver.Resolve(ctx, event.Location)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementGeocodeFailure()
		}
		s.warn(ctx, "geocode failed", err, event.ID)
		return
	}
	err = s.events.SetLocation(ctx, event.ID, event.Location, result.Lat, result.Lon, result.Display)
	if errors.Is(err, sentinel.ErrInvalidState) {
		// Location was edited meanwhile; the edit resolves its own text.
		return
	}
	if err != nil {
		s.warn(ctx, "failed to store coordinates", err, event.ID)
		return
	}
	lat, lon := result.Lat, result.Lon
	event.LocationLat, event.LocationLon = &lat, &lon
	event.LocationDisplay = result.Display
}

func idsOf(profiles []*pmodels.Profile) []id.ProfileID {
	out := make([]id.ProfileID, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}

func organizerOf(identity admission.Identity) *pmodels.Profile {
	for _, p := range identity.Profiles {
		if p.Role == pmodels.RoleOrganizer {
			return p
		}
	}
	return nil
}
