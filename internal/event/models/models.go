package models

import (
	"slices"
	"time"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

type Employment string

const (
	EmploymentFull    Employment = "full"
	EmploymentPart    Employment = "part"
	EmploymentOneTime Employment = "one_time"
)

func (e Employment) IsValid() bool {
	switch e {
	case EmploymentFull, EmploymentPart, EmploymentOneTime:
		return true
	}
	return false
}

// Audience is the profile role an event recruits.
type Audience string

const (
	AudienceVolunteer Audience = "volunteer"
	AudienceRefugee   Audience = "refugee"
)

func (a Audience) IsValid() bool {
	return a == AudienceVolunteer || a == AudienceRefugee
}

// State is derived, never stored.
type State string

const (
	StateActive    State = "active"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

type Event struct {
	ID              id.EventID
	Active          bool
	Name            string
	Description     string
	Image           string
	StartTime       time.Time
	EndTime         time.Time
	RegDate         time.Time
	CityID          *id.CityID
	Location        string
	LocationLat     *float64
	LocationLon     *float64
	LocationDisplay string
	Employment      Employment
	To              Audience
	Owner           id.ProfileID
	Participants    []id.ProfileID
	Skills          []id.SkillID
	RequiredMembers int
}

// NewEvent builds an active event and checks its structural invariants.
func NewEvent(eventID id.EventID, owner id.ProfileID, name string, start, end time.Time, employment Employment, to Audience, requiredMembers int, now time.Time) (*Event, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event requires an owner")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event name is required")
	}
	if !employment.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employment must be one of full, part, one_time")
	}
	if !to.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "to must be volunteer or refugee")
	}
	if requiredMembers < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "required_members must be at least 1")
	}
	if end.Before(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "end_time must not be before start_time")
	}
	return &Event{
		ID:              eventID,
		Active:          true,
		Name:            name,
		StartTime:       start,
		EndTime:         end,
		RegDate:         now,
		Employment:      employment,
		To:              to,
		Owner:           owner,
		Participants:    []id.ProfileID{},
		Skills:          []id.SkillID{},
		RequiredMembers: requiredMembers,
	}, nil
}

func (e *Event) HasParticipant(profileID id.ProfileID) bool {
	return slices.Contains(e.Participants, profileID)
}

// OpenSlots is how many more participants the event accepts.
func (e *Event) OpenSlots() int {
	return max(e.RequiredMembers-len(e.Participants), 0)
}

func (e *Event) HasCoordinates() bool {
	return e.LocationLat != nil && e.LocationLon != nil
}

// Clone returns a deep copy safe to hand out of a store.
func (e *Event) Clone() *Event {
	c := *e
	c.Participants = slices.Clone(e.Participants)
	c.Skills = slices.Clone(e.Skills)
	if e.CityID != nil {
		city := *e.CityID
		c.CityID = &city
	}
	if e.LocationLat != nil {
		lat := *e.LocationLat
		c.LocationLat = &lat
	}
	if e.LocationLon != nil {
		lon := *e.LocationLon
		c.LocationLon = &lon
	}
	return &c
}

// EventLog records one terminal transition. Logs are append-only.
type EventLog struct {
	ID         id.EventLogID
	EventID    id.EventID
	Subscribed []id.ProfileID
	Attended   []id.ProfileID
	Happened   bool
	LogDate    time.Time
}

func (l *EventLog) HasAttended(profileID id.ProfileID) bool {
	return slices.Contains(l.Attended, profileID)
}

// StateOf derives the lifecycle state from the active flag and the most
// recent log. An inactive event with no log reads as cancelled.
func StateOf(event *Event, latest *EventLog) State {
	if event.Active {
		return StateActive
	}
	if latest != nil && latest.Happened {
		return StateFinished
	}
	return StateCancelled
}

type City struct {
	ID    id.CityID
	Name  string
	Alias string
}
