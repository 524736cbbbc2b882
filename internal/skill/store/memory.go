package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"unitedhelp/internal/skill/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
)

type InMemorySkillStore struct {
	mu     sync.RWMutex
	skills map[id.SkillID]*models.Skill
	names  map[string]id.SkillID
}

func NewInMemorySkillStore() *InMemorySkillStore {
	return &InMemorySkillStore{
		skills: make(map[id.SkillID]*models.Skill),
		names:  make(map[string]id.SkillID),
	}
}

func cloneSkill(s *models.Skill) *models.Skill {
	c := *s
	c.Parents = slices.Clone(s.Parents)
	if c.Parents == nil {
		c.Parents = []id.SkillID{}
	}
	return &c
}

func (s *InMemorySkillStore) Create(_ context.Context, skill *models.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[skill.Name]; ok {
		return sentinel.ErrConflict
	}
	if !s.allExist(skill.Parents) {
		return sentinel.ErrNotFound
	}
	s.skills[skill.ID] = cloneSkill(skill)
	s.names[skill.Name] = skill.ID
	return nil
}

func (s *InMemorySkillStore) FindByID(_ context.Context, skillID id.SkillID) (*models.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.skills[skillID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSkill(skill), nil
}

func (s *InMemorySkillStore) List(_ context.Context) ([]*models.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Skill, 0, len(s.skills))
	for _, skill := range s.skills {
		out = append(out, cloneSkill(skill))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemorySkillStore) SetParents(_ context.Context, skillID id.SkillID, parents []id.SkillID, guard Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	skill, ok := s.skills[skillID]
	if !ok || !s.allExist(parents) {
		return sentinel.ErrNotFound
	}
	if guard != nil {
		graph := make(models.Graph, len(s.skills))
		for k, v := range s.skills {
			graph[k] = v.Parents
		}
		if err := guard(graph); err != nil {
			return err
		}
	}
	skill.Parents = slices.Clone(parents)
	return nil
}

func (s *InMemorySkillStore) allExist(ids []id.SkillID) bool {
	for _, v := range ids {
		if _, ok := s.skills[v]; !ok {
			return false
		}
	}
	return true
}
