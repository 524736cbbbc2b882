package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"unitedhelp/internal/platform/postgres"
	"unitedhelp/internal/rating/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	txcontext "unitedhelp/pkg/platform/tx"
)

// PostgresVotingStore relies on the (voter, applicant, event) unique index so
// concurrent duplicate votes resolve to exactly one row.
type PostgresVotingStore struct {
	db *sql.DB
}

func NewPostgresVotingStore(db *sql.DB) *PostgresVotingStore {
	return &PostgresVotingStore{db: db}
}

func (s *PostgresVotingStore) CreateIfAbsent(ctx context.Context, v *models.Voting) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO votings (id, voter_id, applicant_id, event_id, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (voter_id, applicant_id, event_id) DO NOTHING
	`, uuid.UUID(v.ID), uuid.UUID(v.Voter), uuid.UUID(v.Applicant), uuid.UUID(v.EventID), v.Score, v.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert voting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresVotingStore) ScoreTotals(ctx context.Context, applicant id.ProfileID) (sum, count int, err error) {
	err = txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(score), 0), COUNT(*) FROM votings WHERE applicant_id = $1
	`, uuid.UUID(applicant)).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("score totals: %w", err)
	}
	return sum, count, nil
}
