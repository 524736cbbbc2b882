package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"unitedhelp/internal/comment/models"
	"unitedhelp/internal/platform/postgres"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	txcontext "unitedhelp/pkg/platform/tx"
)

type PostgresCommentStore struct {
	db *sql.DB
}

func NewPostgresCommentStore(db *sql.DB) *PostgresCommentStore {
	return &PostgresCommentStore{db: db}
}

const commentColumns = `id, event_id, user_id, parent_id, text, created_at`

func (s *PostgresCommentStore) Create(ctx context.Context, c *models.Comment) error {
	var parent any
	if c.ParentID != nil {
		parent = uuid.UUID(*c.ParentID)
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(c.ID), uuid.UUID(c.EventID), uuid.UUID(c.UserID), parent, c.Text, c.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresCommentStore) FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, uuid.UUID(commentID))
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

func (s *PostgresCommentStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.Comment, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE event_id = $1 ORDER BY created_at, id`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []*models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCommentStore) CountByEvent(ctx context.Context, eventID id.EventID) (int, error) {
	var n int
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE event_id = $1`, uuid.UUID(eventID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c                      models.Comment
		commentID, event, user uuid.UUID
		parent                 uuid.NullUUID
	)
	if err := row.Scan(&commentID, &event, &user, &parent, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CommentID(commentID)
	c.EventID = id.EventID(event)
	c.UserID = id.UserID(user)
	if parent.Valid {
		p := id.CommentID(parent.UUID)
		c.ParentID = &p
	}
	return &c, nil
}
