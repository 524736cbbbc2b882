package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

const MaxTextLength = 2000

// Comment is a remark on an event. ParentID, when set, points at another
// comment of the same event.
type Comment struct {
	ID        id.CommentID
	EventID   id.EventID
	UserID    id.UserID
	ParentID  *id.CommentID
	Text      string
	CreatedAt time.Time
}

func (c *Comment) IsReply() bool { return c.ParentID != nil }

func NewComment(eventID id.EventID, userID id.UserID, parentID *id.CommentID, text string, now time.Time) (*Comment, error) {
	if eventID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment requires an event and an author")
	}
	if text == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment text is required")
	}
	return &Comment{
		ID:        id.NewCommentID(),
		EventID:   eventID,
		UserID:    userID,
		ParentID:  parentID,
		Text:      text,
		CreatedAt: now,
	}, nil
}

type CreateCommentRequest struct {
	Text     string        `json:"text"`
	ParentID *id.CommentID `json:"parent_id"`
}

func (r *CreateCommentRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
	if r.ParentID != nil && r.ParentID.IsNil() {
		r.ParentID = nil
	}
}

func (r *CreateCommentRequest) Validate() error {
	if r.Text == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if utf8.RuneCountInString(r.Text) > MaxTextLength {
		return dErrors.New(dErrors.CodeValidation, "text must be at most 2000 characters")
	}
	return nil
}
