// Package store persists event comments.
package store

import (
	"context"

	"unitedhelp/internal/comment/models"
	id "unitedhelp/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error)
	// ListByEvent returns the event's comments oldest first.
	ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.Comment, error)
	CountByEvent(ctx context.Context, eventID id.EventID) (int, error)
}
