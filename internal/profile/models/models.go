package models

import (
	"strings"
	"time"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	pstrings "unitedhelp/pkg/platform/strings"
)

// Role is the kind of participation a profile represents. A user holds at
// most one profile per role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	RoleOrganizer Role = "organizer"
	RoleRefugee   Role = "refugee"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleVolunteer, RoleOrganizer, RoleRefugee:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is the account behind one or more profiles. Identity lives in the
// external provider; this record carries push tokens and follows.
type User struct {
	ID       id.UserID
	Username string
	// DeviceTokens is a whitespace-delimited list of push tokens.
	DeviceTokens string
	Following    []id.ProfileID
	CreatedAt    time.Time
}

// Tokens returns the user's distinct push tokens.
func (u *User) Tokens() []string {
	return pstrings.SplitFields(u.DeviceTokens)
}

// IsFollowing reports whether the user follows profileID.
func (u *User) IsFollowing(profileID id.ProfileID) bool {
	for _, p := range u.Following {
		if p == profileID {
			return true
		}
	}
	return false
}

type Profile struct {
	ID           id.ProfileID
	UserID       id.UserID
	Role         Role
	Active       bool
	Rating       float64
	Organization string
	URL          string
	Description  string
	Image        string
	Skills       []id.SkillID
	CreatedAt    time.Time
}

// DisplayName is what notifications show as the actor.
func (p *Profile) DisplayName() string {
	if p.Organization != "" {
		return p.Organization
	}
	return string(p.Role)
}

// NewProfile builds an active profile. Role must be valid and the user set.
func NewProfile(profileID id.ProfileID, userID id.UserID, role Role, now time.Time) (*Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile requires a user")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role: "+string(role))
	}
	return &Profile{
		ID:        profileID,
		UserID:    userID,
		Role:      role,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// CreateProfileRequest is the payload for creating one of the caller's profiles.
type CreateProfileRequest struct {
	Role         Role         `json:"role"`
	Organization string       `json:"organization"`
	URL          string       `json:"url"`
	Description  string       `json:"description"`
	Image        string       `json:"image"`
	Skills       []id.SkillID `json:"skills"`
}

func (r *CreateProfileRequest) Normalize() {
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	r.Organization = strings.TrimSpace(r.Organization)
	r.URL = strings.TrimSpace(r.URL)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateProfileRequest) Validate() error {
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	if !r.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be one of admin, volunteer, organizer, refugee")
	}
	if r.Role == RoleOrganizer && r.Organization == "" {
		return dErrors.New(dErrors.CodeValidation, "organization is required for organizer profiles")
	}
	return nil
}
