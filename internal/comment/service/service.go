package service

import (
	"context"
	"errors"
	"log/slog"

	"unitedhelp/internal/comment/models"
	emodels "unitedhelp/internal/event/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error)
	ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.Comment, error)
	CountByEvent(ctx context.Context, eventID id.EventID) (int, error)
}

type EventReader interface {
	FindByID(ctx context.Context, eventID id.EventID) (*emodels.Event, error)
}

type Service struct {
	comments Store
	events   EventReader
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(comments Store, events EventReader, opts ...Option) (*Service, error) {
	if comments == nil || events == nil {
		return nil, errors.New("comment store and event reader are required")
	}
	s := &Service{comments: comments, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create adds a comment to an event. A reply must target a comment of the same event.
func (s *Service) Create(ctx context.Context, userID id.UserID, eventID id.EventID, req *models.CreateCommentRequest) (*models.Comment, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		parent, err := s.comments.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "parent comment not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent comment")
		}
		if parent.EventID != eventID {
			return nil, dErrors.New(dErrors.CodeValidation, "parent comment belongs to another event")
		}
	}

	comment, err := models.NewComment(eventID, userID, req.ParentID, req.Text, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid comment")
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save comment")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "comment created",
			"comment_id", comment.ID.String(),
			"event_id", eventID.String(),
			"user_id", userID.String(),
		)
	}
	return comment, nil
}

func (s *Service) List(ctx context.Context, eventID id.EventID) ([]*models.Comment, error) {
	if err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list comments")
	}
	return comments, nil
}

// CountByEvent feeds the finished-event summaries.
func (s *Service) CountByEvent(ctx context.Context, eventID id.EventID) (int, error) {
	n, err := s.comments.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count comments")
	}
	return n, nil
}

func (s *Service) requireEvent(ctx context.Context, eventID id.EventID) error {
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return nil
}
