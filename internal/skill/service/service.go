package service

import (
	"context"
	"errors"
	"log/slog"

	"unitedhelp/internal/skill/models"
	"unitedhelp/internal/skill/store"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/sentinel"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(skills store.Store, opts ...Option) (*Service, error) {
	if skills == nil {
		return nil, errors.New("skill store is required")
	}
	s := &Service{store: skills}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, req *models.CreateSkillRequest) (*models.Skill, error) {
	skill := &models.Skill{ID: id.NewSkillID(), Name: req.Name, Parents: req.Parents}
	if err := s.store.Create(ctx, skill); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "skill already exists")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeValidation, "unknown parent skill")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create skill")
	}
	s.log(ctx, "skill created", skill.ID)
	return skill, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Skill, error) {
	skills, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list skills")
	}
	return skills, nil
}

// SetParents replaces the parents of skillID. An edge that would make the
// skill its own ancestor is rejected and nothing is written.
func (s *Service) SetParents(ctx context.Context, skillID id.SkillID, parents []id.SkillID) (*models.Skill, error) {
	guard := func(graph models.Graph) error {
		if parent, cycle := graph.ClosesCycle(skillID, parents); cycle {
			return dErrors.New(dErrors.CodeValidation, "parent "+parent.String()+" would create a cycle")
		}
		return nil
	}
	if err := s.store.SetParents(ctx, skillID, parents, guard); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "skill or parent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update skill parents")
	}
	s.log(ctx, "skill parents updated", skillID)

	skill, err := s.store.FindByID(ctx, skillID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load skill")
	}
	return skill, nil
}

func (s *Service) log(ctx context.Context, msg string, skillID id.SkillID) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg, "skill_id", skillID.String())
}
