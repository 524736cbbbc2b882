package service

import (
	"context"
	"errors"
	"slices"

	"unitedhelp/internal/admission"
	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/store"
	"unitedhelp/internal/notification"
	pmodels "unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

// systemActor marks transitions made by a sweep rather than a user.
const systemActor = "system"

// Subscribe adds the caller's profile matching the event audience. The
// capacity check and the insert run under the event lock.
func (s *Service) Subscribe(ctx context.Context, userID id.UserID, eventID id.EventID) (*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		updated *models.Event
		actor   *pmodels.Profile
	)
	err = s.transition(ctx, admission.ActionSubscribe, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		p, err := s.admit(ctx, identity, event, admission.ActionSubscribe)
		if err != nil {
			return err
		}
		if !event.Active {
			return dErrors.New(dErrors.CodeConflict, "event is not active")
		}
		if event.HasParticipant(p.ID) {
			return dErrors.New(dErrors.CodeConflict, "already subscribed")
		}
		if event.OpenSlots() == 0 {
			return dErrors.New(dErrors.CodeConflict, "no open slots")
		}
		if err := tx.AddParticipant(ctx, eventID, p.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "already subscribed")
			}
			return translateStoreErr(err, "failed to add participant")
		}
		event.Participants = append(event.Participants, p.ID)
		updated, actor = event, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventEventSubscribed),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actor.ID.String(),
	)
	s.notifyOwner(ctx, updated, actor, userID, notification.NotifySubscribe)
	return updated, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return err
	}

	var (
		updated *models.Event
		actor   *pmodels.Profile
	)
	err = s.transition(ctx, admission.ActionUnsubscribe, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		p, err := s.admit(ctx, identity, event, admission.ActionUnsubscribe)
		if err != nil {
			return err
		}
		if !event.Active {
			return dErrors.New(dErrors.CodeConflict, "event is not active")
		}
		if !event.HasParticipant(p.ID) {
			return dErrors.New(dErrors.CodeConflict, "not subscribed")
		}
		if err := tx.RemoveParticipant(ctx, eventID, p.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeConflict, "not subscribed")
			}
			return translateStoreErr(err, "failed to remove participant")
		}
		event.Participants = slices.DeleteFunc(event.Participants, func(v id.ProfileID) bool { return v == p.ID })
		updated, actor = event, p
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, string(audit.EventEventUnsubscribe),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actor.ID.String(),
	)
	s.notifyOwner(ctx, updated, actor, userID, notification.NotifyUnsubscribe)
	return nil
}

// Finish records attendance for the current occurrence. attended must be a
// subset of the participants; AllAttended takes every participant.
// One-time events become inactive, recurring ones stay open.
func (s *Service) Finish(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.FinishEventRequest) (*models.Event, *models.EventLog, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	guard := func(ctx context.Context, event *models.Event) (string, error) {
		p, err := s.admit(ctx, identity, event, admission.ActionFinish)
		if err != nil {
			return "", err
		}
		return p.ID.String(), nil
	}
	return s.finish(ctx, userID, eventID, req.VolunteersAttended, req.AllAttended, guard)
}

type guardFunc func(ctx context.Context, event *models.Event) (actorID string, err error)

func (s *Service) finish(ctx context.Context, userID id.UserID, eventID id.EventID, attended []id.ProfileID, all bool, guard guardFunc) (*models.Event, *models.EventLog, error) {
	var (
		updated *models.Event
		log     *models.EventLog
		actorID string
	)
	err := s.transition(ctx, admission.ActionFinish, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if actorID, err = guard(ctx, event); err != nil {
			return err
		}
		if !event.Active {
			return dErrors.New(dErrors.CodeConflict, "event already finished")
		}

		confirmed, err := attendedSet(event, attended, all)
		if err != nil {
			return err
		}
		log = &models.EventLog{
			ID:         id.NewEventLogID(),
			EventID:    eventID,
			Subscribed: slices.Clone(event.Participants),
			Attended:   confirmed,
			Happened:   true,
			LogDate:    requestcontext.Now(ctx),
		}
		if err := tx.AppendLog(ctx, log); err != nil {
			return translateStoreErr(err, "failed to append event log")
		}
		if event.Employment == models.EmploymentOneTime {
			if err := tx.SetActive(ctx, eventID, false); err != nil {
				return translateStoreErr(err, "failed to deactivate event")
			}
			event.Active = false
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logAudit(ctx, string(audit.EventEventFinished),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actorID,
	)
	s.notifyAudience(ctx, updated, log.Subscribed, notification.NotifyFinish, "")
	return updated, log, nil
}

func attendedSet(event *models.Event, attended []id.ProfileID, all bool) ([]id.ProfileID, error) {
	if all {
		return slices.Clone(event.Participants), nil
	}
	out := make([]id.ProfileID, 0, len(attended))
	for _, p := range attended {
		if !event.HasParticipant(p) {
			return nil, dErrors.New(dErrors.CodeValidation, "profile "+p.String()+" is not a participant")
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Cancel closes the event without attendance and tells everyone why.
func (s *Service) Cancel(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.CancelEventRequest) (*models.Event, *models.EventLog, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var (
		updated *models.Event
		log     *models.EventLog
		actor   *pmodels.Profile
	)
	err = s.transition(ctx, admission.ActionCancel, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if actor, err = s.admit(ctx, identity, event, admission.ActionCancel); err != nil {
			return err
		}
		if !event.Active {
			return dErrors.New(dErrors.CodeConflict, "event is not active")
		}
		log = &models.EventLog{
			ID:         id.NewEventLogID(),
			EventID:    eventID,
			Subscribed: slices.Clone(event.Participants),
			Attended:   []id.ProfileID{},
			Happened:   false,
			LogDate:    requestcontext.Now(ctx),
		}
		if err := tx.AppendLog(ctx, log); err != nil {
			return translateStoreErr(err, "failed to append event log")
		}
		if err := tx.SetActive(ctx, eventID, false); err != nil {
			return translateStoreErr(err, "failed to deactivate event")
		}
		event.Active = false
		updated = event
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logAudit(ctx, string(audit.EventEventCancelled),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actor.ID.String(),
		"reason", req.Message,
	)
	s.notifyAudience(ctx, updated, log.Subscribed, notification.NotifyCancel, req.Message)
	return updated, log, nil
}

// Activate reopens an inactive event. A one-time event whose last log is a
// finish stays closed.
func (s *Service) Activate(ctx context.Context, userID id.UserID, eventID id.EventID) (*models.Event, error) {
	identity, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		updated *models.Event
		actor   *pmodels.Profile
	)
	err = s.transition(ctx, admission.ActionActivate, eventID, func(ctx context.Context, tx store.Store) error {
		event, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if actor, err = s.admit(ctx, identity, event, admission.ActionActivate); err != nil {
			return err
		}
		if event.Active {
			return dErrors.New(dErrors.CodeConflict, "event already active")
		}
		latest, err := tx.LatestLog(ctx, eventID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return translateStoreErr(err, "failed to load event log")
		}
		if models.StateOf(event, latest) == models.StateFinished && event.Employment == models.EmploymentOneTime {
			return dErrors.New(dErrors.CodeConflict, "a finished one-time event cannot be reactivated")
		}
		if err := tx.SetActive(ctx, eventID, true); err != nil {
			return translateStoreErr(err, "failed to activate event")
		}
		event.Active = true
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventEventActivated),
		"user_id", userID.String(),
		"event_id", eventID.String(),
		"actor_id", actor.ID.String(),
	)
	s.notifyAudience(ctx, updated, updated.Participants, notification.NotifyActivate, "")
	return updated, nil
}
