package models

import (
	"strings"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

// Skill is a node in the skill taxonomy. Parents are broader skills.
type Skill struct {
	ID      id.SkillID
	Name    string
	Parents []id.SkillID
}

// Graph maps each skill to its direct parents.
type Graph map[id.SkillID][]id.SkillID

// ClosesCycle reports whether giving skill the parents would make skill its
// own ancestor. It returns the offending parent.
func (g Graph) ClosesCycle(skill id.SkillID, parents []id.SkillID) (id.SkillID, bool) {
	for _, parent := range parents {
		if g.reaches(parent, skill) {
			return parent, true
		}
	}
	return id.SkillID{}, false
}

// reaches walks parent edges from start iteratively.
func (g Graph) reaches(start, target id.SkillID) bool {
	visited := map[id.SkillID]struct{}{}
	stack := []id.SkillID{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == target {
			return true
		}
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		stack = append(stack, g[cur]...)
	}
	return false
}

type CreateSkillRequest struct {
	Name    string       `json:"name"`
	Parents []id.SkillID `json:"parents"`
}

func (r *CreateSkillRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Parents = DedupeIDs(r.Parents)
}

func (r *CreateSkillRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 100 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	return nil
}

type SetParentsRequest struct {
	Parents []id.SkillID `json:"parents"`
}

func (r *SetParentsRequest) Normalize() {
	r.Parents = DedupeIDs(r.Parents)
}

func (r *SetParentsRequest) Validate() error { return nil }

func DedupeIDs(ids []id.SkillID) []id.SkillID {
	out := make([]id.SkillID, 0, len(ids))
	seen := make(map[id.SkillID]struct{}, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok || v.IsNil() {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
