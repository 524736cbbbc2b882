package models

// FinishedSummary is an organizer's view of one finished event.
type FinishedSummary struct {
	Event             *Event
	Log               *EventLog
	SubscribedMembers int
	CommentsCount     int
	Rating            float64
}
