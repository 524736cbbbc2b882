package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
)

type InMemoryProfileStoreSuite struct {
	suite.Suite
	users    *InMemoryUserStore
	profiles *InMemoryProfileStore
	ctx      context.Context
}

func TestInMemoryProfileStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryProfileStoreSuite))
}

func (s *InMemoryProfileStoreSuite) SetupTest() {
	s.users = NewInMemoryUserStore()
	s.profiles = NewInMemoryProfileStore()
	s.ctx = context.Background()
}

func (s *InMemoryProfileStoreSuite) newProfile(userID id.UserID, role models.Role) *models.Profile {
	p, err := models.NewProfile(id.NewProfileID(), userID, role, time.Now())
	s.Require().NoError(err)
	return p
}

func (s *InMemoryProfileStoreSuite) TestCreateIfRoleAvailable() {
	userID := id.NewUserID()

	s.Run("first profile per role succeeds", func() {
		s.Require().NoError(s.profiles.CreateIfRoleAvailable(s.ctx, s.newProfile(userID, models.RoleVolunteer)))
		s.Require().NoError(s.profiles.CreateIfRoleAvailable(s.ctx, s.newProfile(userID, models.RoleOrganizer)))
	})

	s.Run("second profile with same role conflicts", func() {
		err := s.profiles.CreateIfRoleAvailable(s.ctx, s.newProfile(userID, models.RoleVolunteer))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("profiles listed in creation order", func() {
		list, err := s.profiles.ListByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(models.RoleVolunteer, list[0].Role)
		s.Equal(models.RoleOrganizer, list[1].Role)
	})
}

func (s *InMemoryProfileStoreSuite) TestConcurrentSameRoleCreatesOne() {
	userID := id.NewUserID()
	const goroutines = 20
	var wg sync.WaitGroup
	var created atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.profiles.CreateIfRoleAvailable(s.ctx, s.newProfile(userID, models.RoleRefugee)) == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())
}

func (s *InMemoryProfileStoreSuite) TestSetActive() {
	p := s.newProfile(id.NewUserID(), models.RoleVolunteer)
	s.Require().NoError(s.profiles.CreateIfRoleAvailable(s.ctx, p))

	updated, err := s.profiles.SetActive(s.ctx, p.ID, false)
	s.Require().NoError(err)
	s.False(updated.Active)

	_, err = s.profiles.SetActive(s.ctx, id.NewProfileID(), true)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryProfileStoreSuite) TestReturnedProfilesAreCopies() {
	p := s.newProfile(id.NewUserID(), models.RoleVolunteer)
	s.Require().NoError(s.profiles.CreateIfRoleAvailable(s.ctx, p))

	got, err := s.profiles.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	got.Active = false

	again, err := s.profiles.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(again.Active)
}

func (s *InMemoryProfileStoreSuite) TestUserTokensAndFollows() {
	userID := id.NewUserID()
	s.Require().NoError(s.users.CreateIfAbsent(s.ctx, &models.User{ID: userID, Username: "olena"}))
	s.Require().NoError(s.users.CreateIfAbsent(s.ctx, &models.User{ID: userID, Username: "ignored"}))

	s.Run("device tokens deduplicated", func() {
		_, err := s.users.AddDeviceToken(s.ctx, userID, "tok-a")
		s.Require().NoError(err)
		u, err := s.users.AddDeviceToken(s.ctx, userID, "tok-a")
		s.Require().NoError(err)
		s.Equal([]string{"tok-a"}, u.Tokens())
		s.Equal("olena", u.Username)
	})

	s.Run("follow is idempotent and unfollow removes", func() {
		organizer := id.NewProfileID()
		s.Require().NoError(s.users.Follow(s.ctx, userID, organizer))
		s.Require().NoError(s.users.Follow(s.ctx, userID, organizer))

		followers, err := s.users.ListFollowers(s.ctx, organizer)
		s.Require().NoError(err)
		s.Len(followers, 1)

		s.Require().NoError(s.users.Unfollow(s.ctx, userID, organizer))
		followers, err = s.users.ListFollowers(s.ctx, organizer)
		s.Require().NoError(err)
		s.Empty(followers)
	})

	s.Run("unknown user", func() {
		_, err := s.users.AddDeviceToken(s.ctx, id.NewUserID(), "tok")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
