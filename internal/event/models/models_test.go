package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

var (
	t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(4 * time.Hour)
)

func newTestEvent(t *testing.T) *Event {
	t.Helper()
	e, err := NewEvent(id.NewEventID(), id.NewProfileID(), "Food drive", t0, t1, EmploymentOneTime, AudienceVolunteer, 2, t0)
	require.NoError(t, err)
	return e
}

func TestNewEvent_Invariants(t *testing.T) {
	owner := id.NewProfileID()
	tests := []struct {
		name     string
		owner    id.ProfileID
		evName   string
		start    time.Time
		end      time.Time
		emp      Employment
		to       Audience
		required int
	}{
		{"nil owner", id.ProfileID(uuid.Nil), "x", t0, t1, EmploymentFull, AudienceVolunteer, 1},
		{"empty name", owner, "", t0, t1, EmploymentFull, AudienceVolunteer, 1},
		{"bad employment", owner, "x", t0, t1, "weekly", AudienceVolunteer, 1},
		{"bad audience", owner, "x", t0, t1, EmploymentFull, "organizer", 1},
		{"zero members", owner, "x", t0, t1, EmploymentFull, AudienceVolunteer, 0},
		{"end before start", owner, "x", t1, t0, EmploymentFull, AudienceVolunteer, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(id.NewEventID(), tt.owner, tt.evName, tt.start, tt.end, tt.emp, tt.to, tt.required, t0)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}

	e := newTestEvent(t)
	assert.True(t, e.Active)
	assert.Equal(t, 2, e.OpenSlots())
	assert.Empty(t, e.Participants)
}

func TestStateOf(t *testing.T) {
	e := newTestEvent(t)
	assert.Equal(t, StateActive, StateOf(e, nil))

	e.Active = false
	assert.Equal(t, StateFinished, StateOf(e, &EventLog{Happened: true}))
	assert.Equal(t, StateCancelled, StateOf(e, &EventLog{Happened: false}))
	assert.Equal(t, StateCancelled, StateOf(e, nil))

	// Reactivated after a finish reads as active again.
	e.Active = true
	assert.Equal(t, StateActive, StateOf(e, &EventLog{Happened: true}))
}

func TestClone_IsDeep(t *testing.T) {
	e := newTestEvent(t)
	lat := 50.45
	e.LocationLat = &lat
	e.Participants = append(e.Participants, id.NewProfileID())

	c := e.Clone()
	c.Participants[0] = id.NewProfileID()
	*c.LocationLat = 0

	assert.NotEqual(t, c.Participants[0], e.Participants[0])
	assert.InDelta(t, 50.45, *e.LocationLat, 0.0001)
}

func TestEventFilter_Matches(t *testing.T) {
	e := newTestEvent(t)
	e.Description = "Sorting donated FOOD boxes"
	skill := id.NewSkillID()
	e.Skills = []id.SkillID{skill}
	member := id.NewProfileID()
	e.Participants = []id.ProfileID{member}
	city := &City{Name: "Kyiv", Alias: "Kyiv Kiev Київ"}

	active := true
	inactive := false
	before := t0.Add(-time.Hour)
	after := t1.Add(time.Hour)
	otherSkill := id.NewSkillID()

	tests := []struct {
		name   string
		filter EventFilter
		city   *City
		want   bool
	}{
		{"empty filter", EventFilter{}, nil, true},
		{"active", EventFilter{Active: &active}, nil, true},
		{"inactive", EventFilter{Active: &inactive}, nil, false},
		{"query in description", EventFilter{Query: "food"}, nil, true},
		{"query miss", EventFilter{Query: "medical"}, nil, false},
		{"employment", EventFilter{Employment: EmploymentOneTime}, nil, true},
		{"employment miss", EventFilter{Employment: EmploymentFull}, nil, false},
		{"city alias substring", EventFilter{City: "kiev"}, city, true},
		{"city without event city", EventFilter{City: "kiev"}, nil, false},
		{"skill", EventFilter{Skill: &skill}, nil, true},
		{"skill miss", EventFilter{Skill: &otherSkill}, nil, false},
		{"time window", EventFilter{StartAfter: &before, EndBefore: &after}, nil, true},
		{"starts too early", EventFilter{StartAfter: &after}, nil, false},
		{"participant", EventFilter{Participants: []id.ProfileID{id.NewProfileID(), member}}, nil, true},
		{"combined AND", EventFilter{Query: "food", Employment: EmploymentFull}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e, tt.city))
		})
	}
}

func TestUpdateEventRequest_Apply(t *testing.T) {
	t.Run("location change clears cached coordinates", func(t *testing.T) {
		e := newTestEvent(t)
		e.Location = "Kyiv, Khreshchatyk 1"
		lat, lon := 50.44, 30.52
		e.LocationLat, e.LocationLon = &lat, &lon
		loc := "Lviv, Rynok 1"

		changed, err := (&UpdateEventRequest{Location: &loc}).Apply(e)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, e.HasCoordinates())
	})

	t.Run("same location keeps coordinates", func(t *testing.T) {
		e := newTestEvent(t)
		e.Location = "Kyiv"
		lat, lon := 50.44, 30.52
		e.LocationLat, e.LocationLon = &lat, &lon
		loc := "Kyiv"

		changed, err := (&UpdateEventRequest{Location: &loc}).Apply(e)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, e.HasCoordinates())
	})

	t.Run("capacity below participants is rejected", func(t *testing.T) {
		e := newTestEvent(t)
		e.Participants = []id.ProfileID{id.NewProfileID(), id.NewProfileID()}
		one := 1

		_, err := (&UpdateEventRequest{RequiredMembers: &one}).Apply(e)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("employment is frozen while inactive", func(t *testing.T) {
		e := newTestEvent(t)
		e.Active = false
		full := EmploymentFull
		name := "Renamed"

		_, err := (&UpdateEventRequest{Name: &name, Employment: &full}).Apply(e)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, EmploymentOneTime, e.Employment)
		assert.Equal(t, "Food drive", e.Name)

		same := EmploymentOneTime
		_, err = (&UpdateEventRequest{Name: &name, Employment: &same}).Apply(e)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", e.Name)
	})

	t.Run("employment changes while active", func(t *testing.T) {
		e := newTestEvent(t)
		part := EmploymentPart

		_, err := (&UpdateEventRequest{Employment: &part}).Apply(e)
		require.NoError(t, err)
		assert.Equal(t, EmploymentPart, e.Employment)
	})
}

func TestCreateEventRequest_Validate(t *testing.T) {
	req := CreateEventRequest{
		Name:            " Shelter shift ",
		StartTime:       t0,
		EndTime:         t1,
		Employment:      "Part",
		To:              "REFUGEE",
		RequiredMembers: 3,
		Skills:          []id.SkillID{id.SkillID(uuid.MustParse("7d2b1c8e-2e0f-4a55-9a1e-1f1f1f1f1f1f")), id.SkillID(uuid.MustParse("7d2b1c8e-2e0f-4a55-9a1e-1f1f1f1f1f1f"))},
	}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "Shelter shift", req.Name)
	assert.Equal(t, EmploymentPart, req.Employment)
	assert.Equal(t, AudienceRefugee, req.To)
	assert.Len(t, req.Skills, 1)

	req.RequiredMembers = 0
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
