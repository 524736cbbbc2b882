package models

import (
	"slices"
	"strings"
	"time"

	id "unitedhelp/pkg/domain"
)

// EventFilter holds AND-combined predicates for listing events.
// Zero-valued fields do not constrain the result.
type EventFilter struct {
	Active       *bool
	Query        string
	Employment   Employment
	City         string
	Skill        *id.SkillID
	StartAfter   *time.Time
	EndBefore    *time.Time
	Owner        *id.ProfileID
	Participants []id.ProfileID
	Limit        int
	Offset       int
}

// Matches evaluates the filter against an event in memory. city may be nil
// when the event has no city.
func (f EventFilter) Matches(e *Event, city *City) bool {
	if f.Active != nil && e.Active != *f.Active {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(e.Name), q) && !strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	if f.Employment != "" && e.Employment != f.Employment {
		return false
	}
	if f.City != "" {
		if city == nil || !strings.Contains(strings.ToLower(city.Alias), strings.ToLower(f.City)) {
			return false
		}
	}
	if f.Skill != nil && !slices.Contains(e.Skills, *f.Skill) {
		return false
	}
	if f.StartAfter != nil && e.StartTime.Before(*f.StartAfter) {
		return false
	}
	if f.EndBefore != nil && e.EndTime.After(*f.EndBefore) {
		return false
	}
	if f.Owner != nil && e.Owner != *f.Owner {
		return false
	}
	if len(f.Participants) > 0 && !slices.ContainsFunc(f.Participants, e.HasParticipant) {
		return false
	}
	return true
}
