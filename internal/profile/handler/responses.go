package handler

import (
	"time"

	"unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
)

type ProfileResponse struct {
	ID           id.ProfileID `json:"id"`
	UserID       id.UserID    `json:"user_id"`
	Role         string       `json:"role"`
	Active       bool         `json:"active"`
	Rating       float64      `json:"rating"`
	Organization string       `json:"organization,omitempty"`
	URL          string       `json:"url,omitempty"`
	Description  string       `json:"description,omitempty"`
	Image        string       `json:"image,omitempty"`
	Skills       []id.SkillID `json:"skills"`
	CreatedAt    time.Time    `json:"created_at"`
}

type UserResponse struct {
	ID          id.UserID      `json:"id"`
	Username    string         `json:"username"`
	Following   []id.ProfileID `json:"following"`
	DeviceCount int            `json:"device_count"`
}

type MeResponse struct {
	User     UserResponse      `json:"user"`
	Profiles []ProfileResponse `json:"profiles"`
}

func toProfileResponse(p *models.Profile) ProfileResponse {
	skills := p.Skills
	if skills == nil {
		skills = []id.SkillID{}
	}
	return ProfileResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		Role:         string(p.Role),
		Active:       p.Active,
		Rating:       p.Rating,
		Organization: p.Organization,
		URL:          p.URL,
		Description:  p.Description,
		Image:        p.Image,
		Skills:       skills,
		CreatedAt:    p.CreatedAt,
	}
}

func toUserResponse(u *models.User) UserResponse {
	following := u.Following
	if following == nil {
		following = []id.ProfileID{}
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Following:   following,
		DeviceCount: len(u.Tokens()),
	}
}
