package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "unitedhelp/pkg/domain"
)

func TestGraphClosesCycle(t *testing.T) {
	care, medical, firstAid, driving := id.NewSkillID(), id.NewSkillID(), id.NewSkillID(), id.NewSkillID()
	// firstAid -> medical -> care
	g := Graph{
		firstAid: {medical},
		medical:  {care},
	}

	tests := []struct {
		name    string
		skill   id.SkillID
		parents []id.SkillID
		cycle   bool
	}{
		{"self parent", care, []id.SkillID{care}, true},
		{"direct back edge", medical, []id.SkillID{firstAid}, true},
		{"transitive back edge", care, []id.SkillID{firstAid}, true},
		{"unrelated parent", firstAid, []id.SkillID{driving}, false},
		{"second parent along the chain", firstAid, []id.SkillID{medical, care}, false},
		{"no parents", care, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := g.ClosesCycle(tt.skill, tt.parents)
			assert.Equal(t, tt.cycle, got)
		})
	}
}

func TestGraphClosesCycle_Diamond(t *testing.T) {
	top, left, right, bottom := id.NewSkillID(), id.NewSkillID(), id.NewSkillID(), id.NewSkillID()
	g := Graph{
		left:   {top},
		right:  {top},
		bottom: {left, right},
	}
	_, cycle := g.ClosesCycle(top, []id.SkillID{bottom})
	assert.True(t, cycle)
	_, cycle = g.ClosesCycle(right, []id.SkillID{left})
	assert.False(t, cycle)
}

func TestDedupeIDs(t *testing.T) {
	a, b := id.NewSkillID(), id.NewSkillID()
	assert.Equal(t, []id.SkillID{a, b}, DedupeIDs([]id.SkillID{a, {}, b, a}))
}
