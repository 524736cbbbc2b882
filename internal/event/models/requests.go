package models

import (
	"strings"
	"time"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	pstrings "unitedhelp/pkg/platform/strings"
)

const maxNameLength = 200

type CreateEventRequest struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Image           string       `json:"image"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	CityID          *id.CityID   `json:"city_id"`
	Location        string       `json:"location"`
	Employment      Employment   `json:"employment"`
	To              Audience     `json:"to"`
	Skills          []id.SkillID `json:"skills"`
	RequiredMembers int          `json:"required_members"`
}

func (r *CreateEventRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Image = strings.TrimSpace(r.Image)
	r.Location = strings.TrimSpace(r.Location)
	r.Employment = Employment(strings.ToLower(strings.TrimSpace(string(r.Employment))))
	r.To = Audience(strings.ToLower(strings.TrimSpace(string(r.To))))
	r.Skills = dedupeSkills(r.Skills)
}

func (r *CreateEventRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_time and end_time are required")
	}
	if r.EndTime.Before(r.StartTime) {
		return dErrors.New(dErrors.CodeValidation, "end_time must not be before start_time")
	}
	if !r.Employment.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "employment must be one of full, part, one_time")
	}
	if !r.To.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "to must be volunteer or refugee")
	}
	if r.RequiredMembers < 1 {
		return dErrors.New(dErrors.CodeValidation, "required_members must be at least 1")
	}
	return nil
}

// UpdateEventRequest carries an owner's partial edit. Nil fields are unchanged.
type UpdateEventRequest struct {
	Name            *string       `json:"name"`
	Description     *string       `json:"description"`
	Image           *string       `json:"image"`
	StartTime       *time.Time    `json:"start_time"`
	EndTime         *time.Time    `json:"end_time"`
	CityID          *id.CityID    `json:"city_id"`
	Location        *string       `json:"location"`
	Employment      *Employment   `json:"employment"`
	Skills          *[]id.SkillID `json:"skills"`
	RequiredMembers *int          `json:"required_members"`
}

func (r *UpdateEventRequest) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(r.Name)
	trim(r.Description)
	trim(r.Image)
	trim(r.Location)
	if r.Employment != nil {
		e := Employment(strings.ToLower(strings.TrimSpace(string(*r.Employment))))
		r.Employment = &e
	}
	if r.Skills != nil {
		skills := dedupeSkills(*r.Skills)
		r.Skills = &skills
	}
}

func (r *UpdateEventRequest) Validate() error {
	if r.Name != nil && (*r.Name == "" || len(*r.Name) > maxNameLength) {
		return dErrors.New(dErrors.CodeValidation, "name must be 1-200 characters")
	}
	if r.Employment != nil && !r.Employment.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "employment must be one of full, part, one_time")
	}
	if r.RequiredMembers != nil && *r.RequiredMembers < 1 {
		return dErrors.New(dErrors.CodeValidation, "required_members must be at least 1")
	}
	return nil
}

// Apply merges the edit into event and re-checks the cross-field invariants.
// It reports whether the location text changed.
func (r *UpdateEventRequest) Apply(event *Event) (locationChanged bool, err error) {
	// Employment decides whether a finished event may be reactivated, so it is
	// frozen once the event has stopped.
	if r.Employment != nil && *r.Employment != event.Employment && !event.Active {
		return false, dErrors.New(dErrors.CodeConflict, "employment cannot change while the event is inactive")
	}
	if r.Name != nil {
		event.Name = *r.Name
	}
	if r.Description != nil {
		event.Description = *r.Description
	}
	if r.Image != nil {
		event.Image = *r.Image
	}
	if r.StartTime != nil {
		event.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		event.EndTime = *r.EndTime
	}
	if r.CityID != nil {
		city := *r.CityID
		event.CityID = &city
	}
	if r.Location != nil && *r.Location != event.Location {
		event.Location = *r.Location
		event.LocationLat = nil
		event.LocationLon = nil
		event.LocationDisplay = ""
		locationChanged = true
	}
	if r.Employment != nil {
		event.Employment = *r.Employment
	}
	if r.Skills != nil {
		event.Skills = *r.Skills
	}
	if r.RequiredMembers != nil {
		event.RequiredMembers = *r.RequiredMembers
	}

	if event.EndTime.Before(event.StartTime) {
		return false, dErrors.New(dErrors.CodeValidation, "end_time must not be before start_time")
	}
	if len(event.Participants) > event.RequiredMembers {
		return false, dErrors.New(dErrors.CodeValidation, "required_members is below the current participant count")
	}
	return locationChanged, nil
}

// FinishEventRequest lists the participants who attended.
type FinishEventRequest struct {
	VolunteersAttended []id.ProfileID `json:"volunteers_attended"`
	// AllAttended marks every current participant as attended.
	AllAttended bool `json:"all_attended"`
}

func (r *FinishEventRequest) Normalize() {
	if r.VolunteersAttended == nil {
		r.VolunteersAttended = []id.ProfileID{}
	}
}

func (r *FinishEventRequest) Validate() error {
	if r.AllAttended && len(r.VolunteersAttended) > 0 {
		return dErrors.New(dErrors.CodeValidation, "all_attended cannot be combined with volunteers_attended")
	}
	return nil
}

type CancelEventRequest struct {
	Message string `json:"message"`
}

func (r *CancelEventRequest) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
}

func (r *CancelEventRequest) Validate() error {
	if len(r.Message) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "message is too long")
	}
	return nil
}

type CreateCityRequest struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

func (r *CreateCityRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Alias = strings.Join(pstrings.SplitFields(r.Alias), " ")
	if r.Alias == "" {
		r.Alias = r.Name
	}
}

func (r *CreateCityRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func dedupeSkills(skills []id.SkillID) []id.SkillID {
	out := make([]id.SkillID, 0, len(skills))
	seen := make(map[id.SkillID]struct{}, len(skills))
	for _, s := range skills {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
