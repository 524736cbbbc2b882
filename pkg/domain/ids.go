// Package domain holds typed identifiers shared across modules.
//
// Each entity gets its own UUID-backed type so a ProfileID can never be passed
// where a UserID is expected. Parse* functions are the trust boundary: they
// reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "unitedhelp/pkg/domain-errors"
)

type (
	UserID     uuid.UUID
	ProfileID  uuid.UUID
	EventID    uuid.UUID
	EventLogID uuid.UUID
	VotingID   uuid.UUID
	CommentID  uuid.UUID
	SkillID    uuid.UUID
	CityID     uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	return UserID(u), err
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID("profile_id", s)
	return ProfileID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event_id", s)
	return EventID(u), err
}

func ParseEventLogID(s string) (EventLogID, error) {
	u, err := parseUUID("event_log_id", s)
	return EventLogID(u), err
}

func ParseVotingID(s string) (VotingID, error) {
	u, err := parseUUID("voting_id", s)
	return VotingID(u), err
}

func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID("comment_id", s)
	return CommentID(u), err
}

func ParseSkillID(s string) (SkillID, error) {
	u, err := parseUUID("skill_id", s)
	return SkillID(u), err
}

func ParseCityID(s string) (CityID, error) {
	u, err := parseUUID("city_id", s)
	return CityID(u), err
}

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ProfileID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }
func (id EventLogID) String() string { return uuid.UUID(id).String() }
func (id VotingID) String() string   { return uuid.UUID(id).String() }
func (id CommentID) String() string  { return uuid.UUID(id).String() }
func (id SkillID) String() string    { return uuid.UUID(id).String() }
func (id CityID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventLogID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VotingID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CommentID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SkillID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CityID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ProfileID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EventLogID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id VotingID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id CommentID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id SkillID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id CityID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProfileID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventLogID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VotingID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CommentID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SkillID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CityID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewUserID() UserID         { return UserID(uuid.New()) }
func NewProfileID() ProfileID   { return ProfileID(uuid.New()) }
func NewEventID() EventID       { return EventID(uuid.New()) }
func NewEventLogID() EventLogID { return EventLogID(uuid.New()) }
func NewVotingID() VotingID     { return VotingID(uuid.New()) }
func NewCommentID() CommentID   { return CommentID(uuid.New()) }
func NewSkillID() SkillID       { return SkillID(uuid.New()) }
func NewCityID() CityID         { return CityID(uuid.New()) }
