package store

import (
	"context"
	"sync"

	"unitedhelp/internal/rating/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
)

type voteKey struct {
	voter     id.UserID
	applicant id.ProfileID
	event     id.EventID
}

type InMemoryVotingStore struct {
	mu     sync.RWMutex
	votes  map[voteKey]*models.Voting
	totals map[id.ProfileID]tally
}

type tally struct {
	sum   int
	count int
}

func NewInMemoryVotingStore() *InMemoryVotingStore {
	return &InMemoryVotingStore{
		votes:  make(map[voteKey]*models.Voting),
		totals: make(map[id.ProfileID]tally),
	}
}

// CreateIfAbsent stores v unless the voter already voted for the applicant
// in that event, in which case it returns sentinel.ErrConflict.
func (s *InMemoryVotingStore) CreateIfAbsent(_ context.Context, v *models.Voting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{voter: v.Voter, applicant: v.Applicant, event: v.EventID}
	if _, ok := s.votes[key]; ok {
		return sentinel.ErrConflict
	}
	c := *v
	s.votes[key] = &c
	t := s.totals[v.Applicant]
	t.sum += v.Score
	t.count++
	s.totals[v.Applicant] = t
	return nil
}

// ScoreTotals returns the sum and count of scores received by applicant.
func (s *InMemoryVotingStore) ScoreTotals(_ context.Context, applicant id.ProfileID) (sum, count int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.totals[applicant]
	return t.sum, t.count, nil
}
