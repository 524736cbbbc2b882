// Package store persists the skill taxonomy.
package store

import (
	"context"

	"unitedhelp/internal/skill/models"
	id "unitedhelp/pkg/domain"
)

// Guard inspects the current parent graph before a parent change is written.
// A non-nil error aborts the write.
type Guard func(graph models.Graph) error

type Store interface {
	// Create rejects a duplicate name with sentinel.ErrConflict and unknown
	// parents with sentinel.ErrNotFound.
	Create(ctx context.Context, skill *models.Skill) error
	FindByID(ctx context.Context, skillID id.SkillID) (*models.Skill, error)
	List(ctx context.Context) ([]*models.Skill, error)
	// SetParents replaces the parents of skillID. guard runs against a graph
	// snapshot that no other parent change can modify until the write is done.
	SetParents(ctx context.Context, skillID id.SkillID, parents []id.SkillID, guard Guard) error
}
