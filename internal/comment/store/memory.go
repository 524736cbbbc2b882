package store

import (
	"context"
	"sync"

	"unitedhelp/internal/comment/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
)

// InMemoryCommentStore keeps comments per event in insertion order.
type InMemoryCommentStore struct {
	mu      sync.RWMutex
	byID    map[id.CommentID]*models.Comment
	byEvent map[id.EventID][]id.CommentID
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		byID:    make(map[id.CommentID]*models.Comment),
		byEvent: make(map[id.EventID][]id.CommentID),
	}
}

func cloneComment(c *models.Comment) *models.Comment {
	out := *c
	if c.ParentID != nil {
		parent := *c.ParentID
		out.ParentID = &parent
	}
	return &out
}

func (s *InMemoryCommentStore) Create(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[comment.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[comment.ID] = cloneComment(comment)
	s.byEvent[comment.EventID] = append(s.byEvent[comment.EventID], comment.ID)
	return nil
}

func (s *InMemoryCommentStore) FindByID(_ context.Context, commentID id.CommentID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[commentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneComment(c), nil
}

func (s *InMemoryCommentStore) ListByEvent(_ context.Context, eventID id.EventID) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byEvent[eventID]
	out := make([]*models.Comment, 0, len(ids))
	for _, commentID := range ids {
		out = append(out, cloneComment(s.byID[commentID]))
	}
	return out, nil
}

func (s *InMemoryCommentStore) CountByEvent(_ context.Context, eventID id.EventID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEvent[eventID]), nil
}
