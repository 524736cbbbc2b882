package models

import (
	"time"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

const (
	MinScore = -5
	MaxScore = 5
)

// Voting is one voter's score for an organizer in the context of an event.
type Voting struct {
	ID        id.VotingID
	Voter     id.UserID
	Applicant id.ProfileID
	EventID   id.EventID
	Score     int
	CreatedAt time.Time
}

func NewVoting(voter id.UserID, applicant id.ProfileID, eventID id.EventID, score int, now time.Time) (*Voting, error) {
	if score < MinScore || score > MaxScore {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "score must be between -5 and 5")
	}
	if voter.IsNil() || applicant.IsNil() || eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "voting requires voter, applicant and event")
	}
	return &Voting{
		ID:        id.NewVotingID(),
		Voter:     voter,
		Applicant: applicant,
		EventID:   eventID,
		Score:     score,
		CreatedAt: now,
	}, nil
}

type CastVoteRequest struct {
	Applicant id.ProfileID `json:"applicant"`
	Score     *int         `json:"score"`
}

func (r *CastVoteRequest) Normalize() {}

func (r *CastVoteRequest) Validate() error {
	if r.Applicant.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "applicant is required")
	}
	if r.Score == nil {
		return dErrors.New(dErrors.CodeValidation, "score is required")
	}
	return nil
}
