package handler

import (
	"time"

	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/service"
	id "unitedhelp/pkg/domain"
)

type CoordinatesResponse struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Display string  `json:"display,omitempty"`
}

type EventResponse struct {
	ID              id.EventID           `json:"id"`
	Active          bool                 `json:"active"`
	Name            string               `json:"name"`
	Description     string               `json:"description,omitempty"`
	Image           string               `json:"image,omitempty"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	RegDate         time.Time            `json:"reg_date"`
	CityID          *id.CityID           `json:"city_id,omitempty"`
	Location        string               `json:"location,omitempty"`
	Coordinates     *CoordinatesResponse `json:"coordinates,omitempty"`
	Employment      string               `json:"employment"`
	To              string               `json:"to"`
	Owner           id.ProfileID         `json:"owner"`
	Participants    []id.ProfileID       `json:"participants"`
	Skills          []id.SkillID         `json:"skills"`
	RequiredMembers int                  `json:"required_members"`
	OpenSlots       int                  `json:"open_slots"`
}

type EventLogResponse struct {
	ID                   id.EventLogID  `json:"id"`
	EventID              id.EventID     `json:"event_id"`
	VolunteersSubscribed []id.ProfileID `json:"volunteers_subscribed"`
	VolunteersAttended   []id.ProfileID `json:"volunteers_attended"`
	Happened             bool           `json:"happened"`
	LogDate              time.Time      `json:"log_date"`
}

// TransitionResponse is returned by finish and cancel.
type TransitionResponse struct {
	Event EventResponse    `json:"event"`
	Log   EventLogResponse `json:"log"`
}

type FinishedEventResponse struct {
	Event             EventResponse    `json:"event"`
	Log               EventLogResponse `json:"log"`
	SubscribedMembers int              `json:"subscribed_members"`
	CommentsCount     int              `json:"comments_count"`
	Rating            float64          `json:"rating"`
}

type CityResponse struct {
	ID    id.CityID `json:"id"`
	Name  string    `json:"name"`
	Alias string    `json:"alias"`
}

type SweepResponse struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

func toEventResponse(e *models.Event) EventResponse {
	resp := EventResponse{
		ID:              e.ID,
		Active:          e.Active,
		Name:            e.Name,
		Description:     e.Description,
		Image:           e.Image,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		RegDate:         e.RegDate,
		CityID:          e.CityID,
		Location:        e.Location,
		Employment:      string(e.Employment),
		To:              string(e.To),
		Owner:           e.Owner,
		Participants:    nonNil(e.Participants),
		Skills:          nonNil(e.Skills),
		RequiredMembers: e.RequiredMembers,
		OpenSlots:       e.OpenSlots(),
	}
	if e.HasCoordinates() {
		resp.Coordinates = &CoordinatesResponse{Lat: *e.LocationLat, Lon: *e.LocationLon, Display: e.LocationDisplay}
	}
	return resp
}

func toEventResponses(events []*models.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	return out
}

func toEventLogResponse(l *models.EventLog) EventLogResponse {
	return EventLogResponse{
		ID:                   l.ID,
		EventID:              l.EventID,
		VolunteersSubscribed: nonNil(l.Subscribed),
		VolunteersAttended:   nonNil(l.Attended),
		Happened:             l.Happened,
		LogDate:              l.LogDate,
	}
}

func toFinishedResponse(s *models.FinishedSummary) FinishedEventResponse {
	return FinishedEventResponse{
		Event:             toEventResponse(s.Event),
		Log:               toEventLogResponse(s.Log),
		SubscribedMembers: s.SubscribedMembers,
		CommentsCount:     s.CommentsCount,
		Rating:            s.Rating,
	}
}

func toCityResponse(c *models.City) CityResponse {
	return CityResponse{ID: c.ID, Name: c.Name, Alias: c.Alias}
}

func toSweepResponse(r *service.SweepResult) SweepResponse {
	return SweepResponse{Sweep: r.Sweep, Processed: r.Processed, Skipped: r.Skipped, Failed: r.Failed}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
