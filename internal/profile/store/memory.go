package store

import (
	"context"
	"slices"
	"sync"

	"unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	pstrings "unitedhelp/pkg/platform/strings"
)

// InMemoryUserStore keeps users in a map. Returned values are copies.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Following = slices.Clone(u.Following)
	return &c
}

// CreateIfAbsent inserts user unless a user with the same ID exists.
func (s *InMemoryUserStore) CreateIfAbsent(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return nil
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

// FindByIDs returns the users that exist among ids, in input order.
func (s *InMemoryUserStore) FindByIDs(_ context.Context, ids []id.UserID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(ids))
	for _, userID := range ids {
		if u, ok := s.users[userID]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *InMemoryUserStore) AddDeviceToken(_ context.Context, userID id.UserID, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	u.DeviceTokens = pstrings.AppendField(u.DeviceTokens, token)
	return cloneUser(u), nil
}

func (s *InMemoryUserStore) Follow(_ context.Context, userID id.UserID, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !u.IsFollowing(profileID) {
		u.Following = append(u.Following, profileID)
	}
	return nil
}

func (s *InMemoryUserStore) Unfollow(_ context.Context, userID id.UserID, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Following = slices.DeleteFunc(u.Following, func(p id.ProfileID) bool { return p == profileID })
	return nil
}

// ListFollowers returns every user following profileID.
func (s *InMemoryUserStore) ListFollowers(_ context.Context, profileID id.ProfileID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.IsFollowing(profileID) {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// InMemoryProfileStore enforces one profile per (user, role) under its lock.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
	byUser   map[id.UserID][]id.ProfileID
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{
		profiles: make(map[id.ProfileID]*models.Profile),
		byUser:   make(map[id.UserID][]id.ProfileID),
	}
}

func cloneProfile(p *models.Profile) *models.Profile {
	c := *p
	c.Skills = slices.Clone(p.Skills)
	return &c
}

// CreateIfRoleAvailable inserts profile, or returns sentinel.ErrConflict when
// the user already holds a profile with the same role.
func (s *InMemoryProfileStore) CreateIfRoleAvailable(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range s.byUser[profile.UserID] {
		if s.profiles[pid].Role == profile.Role {
			return sentinel.ErrConflict
		}
	}
	s.profiles[profile.ID] = cloneProfile(profile)
	s.byUser[profile.UserID] = append(s.byUser[profile.UserID], profile.ID)
	return nil
}

func (s *InMemoryProfileStore) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *InMemoryProfileStore) FindByIDs(_ context.Context, ids []id.ProfileID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(ids))
	for _, pid := range ids {
		if p, ok := s.profiles[pid]; ok {
			out = append(out, cloneProfile(p))
		}
	}
	return out, nil
}

// ListByUser returns a user's profiles in creation order.
func (s *InMemoryProfileStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]*models.Profile, 0, len(ids))
	for _, pid := range ids {
		out = append(out, cloneProfile(s.profiles[pid]))
	}
	return out, nil
}

func (s *InMemoryProfileStore) SetActive(_ context.Context, profileID id.ProfileID, active bool) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.Active = active
	return cloneProfile(p), nil
}
