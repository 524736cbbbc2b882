package audit

import (
	"context"
	"time"

	id "unitedhelp/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryLifecycle covers event state transitions and the attendance record
	// they produce. These back organizer reputation and are kept long term.
	CategoryLifecycle EventCategory = "lifecycle"

	// CategorySecurity covers access decisions worth alerting on.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as profile edits and sweeps.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	RequestID string
	// ActorID is the profile that acted when it differs from the user.
	ActorID string
}

type AuditEvent string

const (
	EventProfileCreated     AuditEvent = "profile_created"
	EventProfileActivated   AuditEvent = "profile_activated"
	EventProfileDeactivated AuditEvent = "profile_deactivated"
	EventProfileFollowed    AuditEvent = "profile_followed"
	EventProfileUnfollowed  AuditEvent = "profile_unfollowed"
	EventDeviceTokenAdded   AuditEvent = "device_token_added"

	EventEventCreated     AuditEvent = "event_created"
	EventEventUpdated     AuditEvent = "event_updated"
	EventEventSubscribed  AuditEvent = "event_subscribed"
	EventEventUnsubscribe AuditEvent = "event_unsubscribed"
	EventEventFinished    AuditEvent = "event_finished"
	EventEventCancelled   AuditEvent = "event_cancelled"
	EventEventActivated   AuditEvent = "event_activated"

	EventVoteCast     AuditEvent = "vote_cast"
	EventCommentAdded AuditEvent = "comment_added"

	EventAdmissionDenied AuditEvent = "admission_denied"
	EventSweepCompleted  AuditEvent = "sweep_completed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEventFinished:  CategoryLifecycle,
	EventEventCancelled: CategoryLifecycle,
	EventEventActivated: CategoryLifecycle,
	EventVoteCast:       CategoryLifecycle,

	EventAdmissionDenied:    CategorySecurity,
	EventProfileActivated:   CategorySecurity,
	EventProfileDeactivated: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
