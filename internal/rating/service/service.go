package service

import (
	"context"
	"errors"
	"log/slog"

	emodels "unitedhelp/internal/event/models"
	pmodels "unitedhelp/internal/profile/models"
	"unitedhelp/internal/rating/metrics"
	"unitedhelp/internal/rating/models"
	"unitedhelp/pkg/attrs"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

type VotingStore interface {
	CreateIfAbsent(ctx context.Context, v *models.Voting) error
	ScoreTotals(ctx context.Context, applicant id.ProfileID) (sum, count int, err error)
}

type EventReader interface {
	FindByID(ctx context.Context, eventID id.EventID) (*emodels.Event, error)
	HasAttended(ctx context.Context, eventID id.EventID, profileIDs []id.ProfileID) (bool, error)
}

type ProfileLister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]*pmodels.Profile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service aggregates organizer ratings from participant votes.
type Service struct {
	votes          VotingStore
	events         EventReader
	profiles       ProfileLister
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(votes VotingStore, events EventReader, profiles ProfileLister, opts ...Option) (*Service, error) {
	if votes == nil || events == nil || profiles == nil {
		return nil, errors.New("voting store, event reader and profile lister are required")
	}
	s := &Service{votes: votes, events: events, profiles: profiles}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RatingOf is the mean score received by profileID, or 0 with no votes.
func (s *Service) RatingOf(ctx context.Context, profileID id.ProfileID) (float64, error) {
	sum, count, err := s.votes.ScoreTotals(ctx, profileID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load votes")
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

// CastVote records voter's score for the organizer of a finished event. Only
// users whose profile attended the event may vote, once per event.
func (s *Service) CastVote(ctx context.Context, voter id.UserID, eventID id.EventID, applicant id.ProfileID, score int) (*models.Voting, error) {
	if score < models.MinScore || score > models.MaxScore {
		s.rejected("score_range")
		return nil, dErrors.New(dErrors.CodeValidation, "score must be between -5 and 5")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	if applicant != event.Owner {
		s.rejected("applicant")
		return nil, dErrors.New(dErrors.CodeValidation, "applicant must be the event organizer")
	}

	profiles, err := s.profiles.ListByUser(ctx, voter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	profileIDs := make([]id.ProfileID, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == event.Owner {
			s.rejected("self_vote")
			return nil, dErrors.New(dErrors.CodeForbidden, "organizers cannot vote for themselves")
		}
		profileIDs = append(profileIDs, p.ID)
	}

	attended := false
	if len(profileIDs) > 0 {
		attended, err = s.events.HasAttended(ctx, eventID, profileIDs)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check attendance")
		}
	}
	if !attended {
		s.rejected("not_attended")
		return nil, dErrors.New(dErrors.CodeForbidden, "only confirmed participants can vote")
	}

	vote, err := models.NewVoting(voter, applicant, eventID, score, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if err := s.votes.CreateIfAbsent(ctx, vote); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.rejected("duplicate")
			return nil, dErrors.New(dErrors.CodeConflict, "you already voted for this organizer in this event")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}

	s.logAudit(ctx, string(audit.EventVoteCast),
		"user_id", voter.String(),
		"event_id", eventID.String(),
		"profile_id", applicant.String(),
		"score", score,
	)
	if s.metrics != nil {
		s.metrics.IncrementCast()
	}
	return vote, nil
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	userID, _ := id.ParseUserID(attrs.String(attributes, "user_id"))
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.String(attributes, "event_id"),
		Action:    event,
		RequestID: requestcontext.RequestID(ctx),
	})
}
