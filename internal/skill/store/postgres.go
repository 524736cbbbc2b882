package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unitedhelp/internal/platform/postgres"
	"unitedhelp/internal/skill/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	txcontext "unitedhelp/pkg/platform/tx"
)

type PostgresSkillStore struct {
	db *sql.DB
}

func NewPostgresSkillStore(db *sql.DB) *PostgresSkillStore {
	return &PostgresSkillStore{db: db}
}

const skillSelect = `
	SELECT s.id, s.name,
	       COALESCE(ARRAY_AGG(p.parent_id::text ORDER BY p.parent_id) FILTER (WHERE p.parent_id IS NOT NULL), '{}')
	FROM skills s
	LEFT JOIN skill_parents p ON p.skill_id = s.id`

func (s *PostgresSkillStore) Create(ctx context.Context, skill *models.Skill) error {
	return s.inTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		_, err := q.ExecContext(ctx, `INSERT INTO skills (id, name) VALUES ($1, $2)`, uuid.UUID(skill.ID), skill.Name)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert skill: %w", err)
		}
		return insertParents(ctx, q, skill.ID, skill.Parents)
	})
}

func (s *PostgresSkillStore) FindByID(ctx context.Context, skillID id.SkillID) (*models.Skill, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, skillSelect+` WHERE s.id = $1 GROUP BY s.id, s.name`, uuid.UUID(skillID))
	if err != nil {
		return nil, fmt.Errorf("find skill: %w", err)
	}
	skills, err := scanSkills(rows)
	if err != nil {
		return nil, err
	}
	if len(skills) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return skills[0], nil
}

func (s *PostgresSkillStore) List(ctx context.Context) ([]*models.Skill, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, skillSelect+` GROUP BY s.id, s.name ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return scanSkills(rows)
}

// SetParents takes an exclusive lock on skill_parents so concurrent edits
// cannot jointly close a cycle that neither guard saw.
func (s *PostgresSkillStore) SetParents(ctx context.Context, skillID id.SkillID, parents []id.SkillID, guard Guard) error {
	return s.inTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		if _, err := q.ExecContext(ctx, `LOCK TABLE skill_parents IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock skill graph: %w", err)
		}
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM skills WHERE id = $1)`, uuid.UUID(skillID)).Scan(&exists); err != nil {
			return fmt.Errorf("check skill: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		if guard != nil {
			graph, err := loadGraph(ctx, q)
			if err != nil {
				return err
			}
			if err := guard(graph); err != nil {
				return err
			}
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM skill_parents WHERE skill_id = $1`, uuid.UUID(skillID)); err != nil {
			return fmt.Errorf("clear parents: %w", err)
		}
		return insertParents(ctx, q, skillID, parents)
	})
}

func (s *PostgresSkillStore) inTx(ctx context.Context, fn func(ctx context.Context, q txcontext.Querier) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertParents(ctx context.Context, q txcontext.Querier, skillID id.SkillID, parents []id.SkillID) error {
	if len(parents) == 0 {
		return nil
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO skill_parents (skill_id, parent_id)
		SELECT $1, p FROM unnest($2::uuid[]) AS p
		WHERE EXISTS (SELECT 1 FROM skills WHERE id = p)
	`, uuid.UUID(skillID), pq.Array(postgres.UUIDStrings(parents)))
	if err != nil {
		return fmt.Errorf("insert parents: %w", err)
	}
	if n, _ := res.RowsAffected(); int(n) != len(parents) {
		return sentinel.ErrNotFound
	}
	return nil
}

func loadGraph(ctx context.Context, q txcontext.Querier) (models.Graph, error) {
	rows, err := q.QueryContext(ctx, `SELECT skill_id, parent_id FROM skill_parents`)
	if err != nil {
		return nil, fmt.Errorf("load skill graph: %w", err)
	}
	defer rows.Close()
	graph := models.Graph{}
	for rows.Next() {
		var child, parent uuid.UUID
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("scan skill edge: %w", err)
		}
		graph[id.SkillID(child)] = append(graph[id.SkillID(child)], id.SkillID(parent))
	}
	return graph, rows.Err()
}

func scanSkills(rows *sql.Rows) ([]*models.Skill, error) {
	defer rows.Close()
	out := []*models.Skill{}
	for rows.Next() {
		var (
			skillID uuid.UUID
			skill   models.Skill
			parents []string
		)
		if err := rows.Scan(&skillID, &skill.Name, pq.Array(&parents)); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skill.ID = id.SkillID(skillID)
		skill.Parents = make([]id.SkillID, 0, len(parents))
		for _, p := range parents {
			parsed, err := id.ParseSkillID(p)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("parse parent of %s", skill.Name), err)
			}
			skill.Parents = append(skill.Parents, parsed)
		}
		out = append(out, &skill)
	}
	return out, rows.Err()
}
