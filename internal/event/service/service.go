// Package service is the event lifecycle engine: event CRUD, participation
// transitions, attendance logs, sweeps and the notifications they trigger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unitedhelp/internal/admission"
	"unitedhelp/internal/event/metrics"
	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/store"
	"unitedhelp/internal/location"
	"unitedhelp/internal/notification"
	pmodels "unitedhelp/internal/profile/models"
	smodels "unitedhelp/internal/skill/models"
	"unitedhelp/pkg/attrs"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

// UserReader loads notification recipients.
type UserReader interface {
	FindByIDs(ctx context.Context, ids []id.UserID) ([]*pmodels.User, error)
	ListFollowers(ctx context.Context, profileID id.ProfileID) ([]*pmodels.User, error)
}

type ProfileReader interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*pmodels.Profile, error)
	FindByIDs(ctx context.Context, ids []id.ProfileID) ([]*pmodels.Profile, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*pmodels.Profile, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipients []notification.Recipient, msg notification.Message) notification.Result
}

type LocationResolver interface {
	Resolve(ctx context.Context, query string) (*location.Result, error)
}

type RatingSource interface {
	RatingOf(ctx context.Context, profileID id.ProfileID) (float64, error)
}

type SkillReader interface {
	FindByID(ctx context.Context, skillID id.SkillID) (*smodels.Skill, error)
}

type CommentCounter interface {
	CountByEvent(ctx context.Context, eventID id.EventID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// defaultFinishWindow matches the sweep cadence of the external timer plus slack.
const defaultFinishWindow = 6 * time.Minute

type Service struct {
	events   store.TxStore
	users    UserReader
	profiles ProfileReader

	notifier       Notifier
	resolver       LocationResolver
	ratings        RatingSource
	skills         SkillReader
	comments       CommentCounter
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer

	publicBaseURL string
	finishWindow  time.Duration
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

// WithNotifier enables push fan-out. Without it transitions only log.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLocationResolver(r LocationResolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

func WithRatingSource(r RatingSource) Option {
	return func(s *Service) {
		s.ratings = r
	}
}

// WithSkillReader makes Create reject unknown skill IDs.
func WithSkillReader(r SkillReader) Option {
	return func(s *Service) {
		s.skills = r
	}
}

func WithCommentCounter(c CommentCounter) Option {
	return func(s *Service) {
		s.comments = c
	}
}

// WithPublicBaseURL prefixes event image paths in notification payloads.
func WithPublicBaseURL(base string) Option {
	return func(s *Service) {
		s.publicBaseURL = base
	}
}

// WithFinishWindow sets how far ahead the finish sweep looks for ending events.
func WithFinishWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.finishWindow = d
		}
	}
}

func New(events store.TxStore, users UserReader, profiles ProfileReader, opts ...Option) (*Service, error) {
	if events == nil || users == nil || profiles == nil {
		return nil, errors.New("event store, user reader and profile reader are required")
	}
	s := &Service{
		events:       events,
		users:        users,
		profiles:     profiles,
		tracer:       otel.Tracer("unitedhelp/event"),
		finishWindow: defaultFinishWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// identity loads every profile of the caller for admission.
func (s *Service) identity(ctx context.Context, userID id.UserID) (admission.Identity, error) {
	if userID.IsNil() {
		return admission.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	profiles, err := s.profiles.ListByUser(ctx, userID)
	if err != nil {
		return admission.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return admission.Identity{UserID: userID, Profiles: profiles}, nil
}

func (s *Service) admit(ctx context.Context, identity admission.Identity, event *models.Event, action admission.Action) (*pmodels.Profile, error) {
	p, err := admission.Require(identity, event, action)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementAdmissionDenied(string(action))
		}
		eventID := ""
		if event != nil {
			eventID = event.ID.String()
		}
		s.logAudit(ctx, string(audit.EventAdmissionDenied),
			"user_id", identity.UserID.String(),
			"event_id", eventID,
			"reason", string(action),
		)
		return nil, err
	}
	return p, nil
}

// transition runs fn under the per-event lock and records the outcome.
func (s *Service) transition(ctx context.Context, action admission.Action, eventID id.EventID, fn func(ctx context.Context, tx store.Store) error) error {
	ctx, span := s.tracer.Start(ctx, "event."+string(action),
		trace.WithAttributes(attribute.String("event.id", eventID.String())))
	defer span.End()

	start := time.Now()
	err := s.events.RunInTx(ctx, eventID, fn)
	err = translateStoreErr(err, "event transaction failed")

	if s.metrics != nil {
		s.metrics.ObserveTransitionDuration(string(action), time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
		}
		s.metrics.IncrementTransition(string(action), outcome)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	return err
}

func loadEvent(ctx context.Context, st store.Store, eventID id.EventID) (*models.Event, error) {
	event, err := st.FindByID(ctx, eventID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load event")
	}
	return event, nil
}

// translateStoreErr keeps domain errors and maps sentinel errors to codes.
func translateStoreErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "event transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
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
		Reason:    attrs.String(attributes, "reason"),
		ActorID:   attrs.String(attributes, "actor_id"),
		RequestID: requestcontext.RequestID(ctx),
	})
}
