package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"unitedhelp/internal/event/models"
	"unitedhelp/internal/event/service/mocks"
	"unitedhelp/internal/event/store"
	"unitedhelp/internal/location"
	"unitedhelp/internal/notification"
	pmodels "unitedhelp/internal/profile/models"
	pstore "unitedhelp/internal/profile/store"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/requestcontext"
)

type sentMessage struct {
	tokens []string
	msg    notification.Message
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	fail func(tokens []string) error
}

func (g *recordingGateway) Send(_ context.Context, tokens []string, msg notification.Message) (notification.BatchResult, error) {
	g.mu.Lock()
	g.sent = append(g.sent, sentMessage{tokens: append([]string(nil), tokens...), msg: msg})
	fail := g.fail
	g.mu.Unlock()
	if fail != nil {
		if err := fail(tokens); err != nil {
			return notification.BatchResult{}, err
		}
	}
	return notification.BatchResult{SuccessCount: len(tokens)}, nil
}

func (g *recordingGateway) titles() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.msg.Title)
	}
	return out
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	g.sent = nil
	g.mu.Unlock()
}

type member struct {
	user    *pmodels.User
	profile *pmodels.Profile
}

type EventServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	events   *store.InMemoryEventStore
	users    *pstore.InMemoryUserStore
	profiles *pstore.InMemoryProfileStore
	gateway  *recordingGateway
	resolver *mocks.MockLocationResolver
	ratings  *mocks.MockRatingSource
	comments *mocks.MockCommentCounter
	service  *Service
	ctx      context.Context
	now      time.Time
	owner    member
	seq      int
}

func TestEventServiceSuite(t *testing.T) {
	suite.Run(t, new(EventServiceSuite))
}

func (s *EventServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.events = store.NewInMemoryEventStore()
	s.users = pstore.NewInMemoryUserStore()
	s.profiles = pstore.NewInMemoryProfileStore()
	s.gateway = &recordingGateway{}
	s.resolver = mocks.NewMockLocationResolver(s.ctrl)
	s.ratings = mocks.NewMockRatingSource(s.ctrl)
	s.comments = mocks.NewMockCommentCounter(s.ctrl)
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	notifier := notification.New(s.gateway, notification.WithLogger(logger))

	var err error
	s.service, err = New(s.events, s.users, s.profiles,
		WithLogger(logger),
		WithNotifier(notifier),
		WithLocationResolver(s.resolver),
		WithRatingSource(s.ratings),
		WithCommentCounter(s.comments),
		WithPublicBaseURL("https://cdn.example.org"),
	)
	s.Require().NoError(err)

	s.owner = s.newMember(pmodels.RoleOrganizer, "owner-token", "Red Cross")
}

func (s *EventServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EventServiceSuite) newMember(role pmodels.Role, tokens string, organization ...string) member {
	s.seq++
	user := &pmodels.User{ID: id.NewUserID(), Username: fmt.Sprintf("%s-%d", role, s.seq), DeviceTokens: tokens, CreatedAt: s.now}
	s.Require().NoError(s.users.CreateIfAbsent(s.ctx, user))
	profile := &pmodels.Profile{ID: id.NewProfileID(), UserID: user.ID, Role: role, Active: true, CreatedAt: s.now}
	if len(organization) > 0 {
		profile.Organization = organization[0]
	}
	s.Require().NoError(s.profiles.CreateIfRoleAvailable(s.ctx, profile))
	return member{user: user, profile: profile}
}

func (s *EventServiceSuite) newEvent(employment models.Employment, required int, start time.Time) *models.Event {
	event, err := s.service.Create(s.ctx, s.owner.user.ID, &models.CreateEventRequest{
		Name:            "Food drive",
		Image:           "/media/food.png",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		Employment:      employment,
		To:              models.AudienceVolunteer,
		RequiredMembers: required,
	})
	s.Require().NoError(err)
	return event
}

func (s *EventServiceSuite) subscribed(event *models.Event, n int) []member {
	out := make([]member, 0, n)
	for i := 0; i < n; i++ {
		m := s.newMember(pmodels.RoleVolunteer, fmt.Sprintf("vol-%d", i))
		_, err := s.service.Subscribe(s.ctx, m.user.ID, event.ID)
		s.Require().NoError(err)
		out = append(out, m)
	}
	return out
}

func (s *EventServiceSuite) reload(eventID id.EventID) *models.Event {
	event, err := s.events.FindByID(s.ctx, eventID)
	s.Require().NoError(err)
	return event
}

func (s *EventServiceSuite) TestSubscribe() {
	s.Run("adds the matching profile and tells the owner", func() {
		event := s.newEvent(models.EmploymentOneTime, 3, s.now.Add(24*time.Hour))
		vol := s.newMember(pmodels.RoleVolunteer, "v1 v2")
		s.gateway.reset()

		updated, err := s.service.Subscribe(s.ctx, vol.user.ID, event.ID)
		s.Require().NoError(err)
		s.Equal([]id.ProfileID{vol.profile.ID}, updated.Participants)

		s.Require().Len(s.gateway.sent, 1)
		sent := s.gateway.sent[0]
		s.Equal([]string{"owner-token"}, sent.tokens)
		s.Equal(notification.NotifySubscribe, sent.msg.NotifyType)
		s.Equal("Organizer", sent.msg.ToProfile)
		s.Equal(vol.user.Username+" subscribed to Food drive", sent.msg.Title)
		s.Equal("1 of 3 places taken", sent.msg.Body)
		s.Equal("https://cdn.example.org/media/food.png", sent.msg.Image)
	})

	s.Run("role mismatch is forbidden", func() {
		event := s.newEvent(models.EmploymentOneTime, 3, s.now.Add(24*time.Hour))
		refugee := s.newMember(pmodels.RoleRefugee, "")

		_, err := s.service.Subscribe(s.ctx, refugee.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Empty(s.reload(event.ID).Participants)
	})

	s.Run("second subscribe conflicts", func() {
		event := s.newEvent(models.EmploymentOneTime, 3, s.now.Add(24*time.Hour))
		vol := s.subscribed(event, 1)[0]

		_, err := s.service.Subscribe(s.ctx, vol.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("already subscribed", dErrors.MessageOf(err))
	})

	s.Run("unknown event is not found", func() {
		vol := s.newMember(pmodels.RoleVolunteer, "")
		_, err := s.service.Subscribe(s.ctx, vol.user.ID, id.NewEventID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("anonymous caller is unauthorized", func() {
		event := s.newEvent(models.EmploymentOneTime, 3, s.now.Add(24*time.Hour))
		_, err := s.service.Subscribe(s.ctx, id.UserID{}, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *EventServiceSuite) TestSubscribe_CapacityUnderConcurrency() {
	const capacity, callers = 5, 20
	event := s.newEvent(models.EmploymentOneTime, capacity, s.now.Add(24*time.Hour))
	members := make([]member, 0, callers)
	for i := 0; i < callers; i++ {
		members = append(members, s.newMember(pmodels.RoleVolunteer, ""))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Subscribe(s.ctx, m.user.ID, event.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(capacity, ok)
	s.Equal(callers-capacity, conflicts)
	s.Len(s.reload(event.ID).Participants, capacity)
}

func (s *EventServiceSuite) TestSubscribe_LastSlotRace() {
	event := s.newEvent(models.EmploymentOneTime, 1, s.now.Add(24*time.Hour))
	a := s.newMember(pmodels.RoleVolunteer, "")
	b := s.newMember(pmodels.RoleVolunteer, "")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, m := range []member{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.service.Subscribe(s.ctx, m.user.ID, event.ID)
		}()
	}
	wg.Wait()

	s.Equal(1, countNil(errs))
	for _, err := range errs {
		if err != nil {
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
			s.Equal("no open slots", dErrors.MessageOf(err))
		}
	}
	s.Len(s.reload(event.ID).Participants, 1)
}

func (s *EventServiceSuite) TestUnsubscribe() {
	s.Run("unsubscribe then subscribe restores membership", func() {
		event := s.newEvent(models.EmploymentOneTime, 2, s.now.Add(24*time.Hour))
		vol := s.subscribed(event, 1)[0]

		s.Require().NoError(s.service.Unsubscribe(s.ctx, vol.user.ID, event.ID))
		s.Empty(s.reload(event.ID).Participants)

		_, err := s.service.Subscribe(s.ctx, vol.user.ID, event.ID)
		s.Require().NoError(err)
		s.Equal([]id.ProfileID{vol.profile.ID}, s.reload(event.ID).Participants)
	})

	s.Run("not a participant conflicts", func() {
		event := s.newEvent(models.EmploymentOneTime, 2, s.now.Add(24*time.Hour))
		vol := s.newMember(pmodels.RoleVolunteer, "")

		err := s.service.Unsubscribe(s.ctx, vol.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("not subscribed", dErrors.MessageOf(err))
	})
}

func (s *EventServiceSuite) TestFinish() {
	s.Run("empty attended list records the snapshot", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		s.subscribed(event, 3)

		updated, log, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{VolunteersAttended: []id.ProfileID{}})
		s.Require().NoError(err)
		s.False(updated.Active)
		s.True(log.Happened)
		s.Len(log.Subscribed, 3)
		s.Empty(log.Attended)
		s.Equal(s.now, log.LogDate)
	})

	s.Run("second finish and cancel are rejected without a new log", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		vols := s.subscribed(event, 2)

		_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{VolunteersAttended: []id.ProfileID{vols[0].profile.ID}})
		s.Require().NoError(err)

		_, _, err = s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		_, _, err = s.service.Cancel(s.ctx, s.owner.user.ID, event.ID, &models.CancelEventRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		logs, err := s.events.ListLogs(s.ctx, event.ID)
		s.Require().NoError(err)
		s.Len(logs, 1)
	})

	s.Run("concurrent finishes log once", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		s.subscribed(event, 2)

		errs := make([]error, 4)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, errs[i] = s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{AllAttended: true})
			}()
		}
		wg.Wait()

		s.Equal(1, countNil(errs))
		logs, err := s.events.ListLogs(s.ctx, event.ID)
		s.Require().NoError(err)
		s.Len(logs, 1)
	})

	s.Run("attended outside participants is a validation error", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		s.subscribed(event, 1)

		_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{VolunteersAttended: []id.ProfileID{id.NewProfileID()}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.True(s.reload(event.ID).Active)
	})

	s.Run("only the owner finishes", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		other := s.newMember(pmodels.RoleOrganizer, "")

		_, _, err := s.service.Finish(s.ctx, other.user.ID, event.ID, &models.FinishEventRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("recurring event stays active", func() {
		event := s.newEvent(models.EmploymentFull, 5, s.now)
		s.subscribed(event, 2)

		updated, log, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{AllAttended: true})
		s.Require().NoError(err)
		s.True(updated.Active)
		s.Len(log.Attended, 2)
	})

	s.Run("notifies participants and followers", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		s.subscribed(event, 1)
		follower := s.newMember(pmodels.RoleRefugee, "follower-token")
		s.Require().NoError(s.users.Follow(s.ctx, follower.user.ID, s.owner.profile.ID))
		s.gateway.reset()

		_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{AllAttended: true})
		s.Require().NoError(err)

		s.Require().Len(s.gateway.sent, 1)
		s.ElementsMatch([]string{"vol-0", "follower-token"}, s.gateway.sent[0].tokens)
		s.Equal("Event Food drive by Red Cross finished", s.gateway.sent[0].msg.Title)
		s.Equal("Volunteer", s.gateway.sent[0].msg.ToProfile)
	})
}

func (s *EventServiceSuite) TestFinish_PartialFanOutFailureStillSucceeds() {
	event := s.newEvent(models.EmploymentOneTime, 3, s.now)
	for u := 0; u < 3; u++ {
		tokens := make([]string, 0, 400)
		for k := 0; k < 400; k++ {
			tokens = append(tokens, fmt.Sprintf("tok-%d-%d", u, k))
		}
		m := s.newMember(pmodels.RoleVolunteer, strings.Join(tokens, " "))
		_, err := s.service.Subscribe(s.ctx, m.user.ID, event.ID)
		s.Require().NoError(err)
	}
	s.gateway.reset()

	var once sync.Once
	s.gateway.fail = func(tokens []string) error {
		var err error
		if len(tokens) == notification.MaxBatchSize {
			once.Do(func() { err = errors.New("gateway 503") })
		}
		return err
	}

	_, log, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{AllAttended: true})
	s.Require().NoError(err)
	s.Len(log.Attended, 3)

	total := 0
	for _, sent := range s.gateway.sent {
		total += len(sent.tokens)
	}
	s.Len(s.gateway.sent, 3)
	s.Equal(1200, total)
}

func (s *EventServiceSuite) TestCancel() {
	event := s.newEvent(models.EmploymentFull, 5, s.now.Add(24*time.Hour))
	s.subscribed(event, 2)
	s.gateway.reset()

	updated, log, err := s.service.Cancel(s.ctx, s.owner.user.ID, event.ID, &models.CancelEventRequest{Message: "Storm warning"})
	s.Require().NoError(err)
	s.False(updated.Active)
	s.False(log.Happened)
	s.Len(log.Subscribed, 2)
	s.Empty(log.Attended)

	s.Require().Len(s.gateway.sent, 1)
	s.Equal("Event Food drive by Red Cross cancelled", s.gateway.sent[0].msg.Title)
	s.Equal("Storm warning", s.gateway.sent[0].msg.Body)
}

func (s *EventServiceSuite) TestActivate() {
	s.Run("active event conflicts", func() {
		event := s.newEvent(models.EmploymentFull, 5, s.now)
		_, err := s.service.Activate(s.ctx, s.owner.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("event already active", dErrors.MessageOf(err))
	})

	s.Run("cancelled event reopens", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		_, _, err := s.service.Cancel(s.ctx, s.owner.user.ID, event.ID, &models.CancelEventRequest{})
		s.Require().NoError(err)

		updated, err := s.service.Activate(s.ctx, s.owner.user.ID, event.ID)
		s.Require().NoError(err)
		s.True(updated.Active)
		s.True(s.reload(event.ID).Active)
	})

	s.Run("finished one-time event stays closed", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{})
		s.Require().NoError(err)

		_, err = s.service.Activate(s.ctx, s.owner.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.False(s.reload(event.ID).Active)
	})

	s.Run("finished one-time event cannot be relabelled to reopen", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{})
		s.Require().NoError(err)

		full := models.EmploymentFull
		_, err = s.service.Edit(s.ctx, s.owner.user.ID, event.ID, &models.UpdateEventRequest{Employment: &full})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(models.EmploymentOneTime, s.reload(event.ID).Employment)

		_, err = s.service.Activate(s.ctx, s.owner.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.False(s.reload(event.ID).Active)
	})

	s.Run("volunteer cannot activate", func() {
		event := s.newEvent(models.EmploymentOneTime, 5, s.now)
		_, _, err := s.service.Cancel(s.ctx, s.owner.user.ID, event.ID, &models.CancelEventRequest{})
		s.Require().NoError(err)
		vol := s.newMember(pmodels.RoleVolunteer, "")

		_, err = s.service.Activate(s.ctx, vol.user.ID, event.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *EventServiceSuite) TestCreate() {
	s.Run("non-organizer is forbidden", func() {
		vol := s.newMember(pmodels.RoleVolunteer, "")
		_, err := s.service.Create(s.ctx, vol.user.ID, &models.CreateEventRequest{
			Name: "x", StartTime: s.now, EndTime: s.now, Employment: models.EmploymentFull,
			To: models.AudienceVolunteer, RequiredMembers: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown city is a validation error", func() {
		city := id.NewCityID()
		_, err := s.service.Create(s.ctx, s.owner.user.ID, &models.CreateEventRequest{
			Name: "x", StartTime: s.now, EndTime: s.now, Employment: models.EmploymentFull,
			To: models.AudienceVolunteer, RequiredMembers: 1, CityID: &city,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *EventServiceSuite) TestLocationResolution() {
	req := func(loc string) *models.CreateEventRequest {
		return &models.CreateEventRequest{
			Name: "Warehouse shift", StartTime: s.now, EndTime: s.now.Add(time.Hour),
			Employment: models.EmploymentPart, To: models.AudienceVolunteer, RequiredMembers: 2, Location: loc,
		}
	}

	s.Run("resolved once and reused", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), "Kyiv, Khreshchatyk 1").
			Return(&location.Result{Lat: 50.45, Lon: 30.52, Display: "Khreshchatyk 1, Kyiv"}, nil).Times(1)

		event, err := s.service.Create(s.ctx, s.owner.user.ID, req("Kyiv, Khreshchatyk 1"))
		s.Require().NoError(err)
		s.True(event.HasCoordinates())

		got, err := s.service.Get(s.ctx, event.ID)
		s.Require().NoError(err)
		s.InDelta(50.45, *got.LocationLat, 0.0001)
		s.Equal("Khreshchatyk 1, Kyiv", got.LocationDisplay)
	})

	s.Run("failure is retried on the next read", func() {
		gomock.InOrder(
			s.resolver.EXPECT().Resolve(gomock.Any(), "Lviv").Return(nil, dErrors.New(dErrors.CodeTimeout, "geocoder timed out")),
			s.resolver.EXPECT().Resolve(gomock.Any(), "Lviv").Return(&location.Result{Lat: 49.84, Lon: 24.03, Display: "Lviv"}, nil),
		)

		event, err := s.service.Create(s.ctx, s.owner.user.ID, req("Lviv"))
		s.Require().NoError(err)
		s.False(event.HasCoordinates())

		got, err := s.service.Get(s.ctx, event.ID)
		s.Require().NoError(err)
		s.True(got.HasCoordinates())
	})

	s.Run("edit with a new location resolves again", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), "Odesa").Return(&location.Result{Lat: 46.48, Lon: 30.72, Display: "Odesa"}, nil)
		s.resolver.EXPECT().Resolve(gomock.Any(), "Dnipro").Return(&location.Result{Lat: 48.46, Lon: 35.04, Display: "Dnipro"}, nil)

		event, err := s.service.Create(s.ctx, s.owner.user.ID, req("Odesa"))
		s.Require().NoError(err)

		loc := "Dnipro"
		updated, err := s.service.Edit(s.ctx, s.owner.user.ID, event.ID, &models.UpdateEventRequest{Location: &loc})
		s.Require().NoError(err)
		s.Equal("Dnipro", updated.LocationDisplay)
		s.InDelta(48.46, *s.reload(event.ID).LocationLat, 0.0001)
	})
}

func (s *EventServiceSuite) TestList_BackfillsCoordinatesInBoundedSteps() {
	const total = listResolveLimit + 2
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeExternalFailure, "geocoder down")).Times(total)
	for i := 0; i < total; i++ {
		_, err := s.service.Create(s.ctx, s.owner.user.ID, &models.CreateEventRequest{
			Name: fmt.Sprintf("Shelter shift %d", i), StartTime: s.now, EndTime: s.now.Add(time.Hour),
			Employment: models.EmploymentPart, To: models.AudienceVolunteer, RequiredMembers: 2,
			Location: fmt.Sprintf("Kharkiv, depot %d", i),
		})
		s.Require().NoError(err)
	}
	// One event without a location is never sent to the geocoder.
	s.newEvent(models.EmploymentPart, 2, s.now)

	resolved := func(events []*models.Event) int {
		n := 0
		for _, e := range events {
			if e.HasCoordinates() {
				n++
			}
		}
		return n
	}
	geocoded := &location.Result{Lat: 49.99, Lon: 36.23, Display: "Kharkiv"}

	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(geocoded, nil).Times(listResolveLimit)
	first, err := s.service.List(s.ctx, models.EventFilter{})
	s.Require().NoError(err)
	s.Len(first, total+1)
	s.Equal(listResolveLimit, resolved(first))

	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(geocoded, nil).Times(total - listResolveLimit)
	second, err := s.service.List(s.ctx, models.EventFilter{})
	s.Require().NoError(err)
	s.Equal(total, resolved(second))

	// Everything is cached now, so a further listing makes no lookups.
	third, err := s.service.List(s.ctx, models.EventFilter{})
	s.Require().NoError(err)
	s.Equal(total, resolved(third))
}

func (s *EventServiceSuite) TestLogs_OwnerOnly() {
	event := s.newEvent(models.EmploymentOneTime, 5, s.now)
	_, _, err := s.service.Cancel(s.ctx, s.owner.user.ID, event.ID, &models.CancelEventRequest{})
	s.Require().NoError(err)

	logs, err := s.service.Logs(s.ctx, s.owner.user.ID, event.ID)
	s.Require().NoError(err)
	s.Len(logs, 1)

	vol := s.newMember(pmodels.RoleVolunteer, "")
	_, err = s.service.Logs(s.ctx, vol.user.ID, event.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *EventServiceSuite) TestListings() {
	event := s.newEvent(models.EmploymentOneTime, 5, s.now)
	other := s.newEvent(models.EmploymentOneTime, 5, s.now)
	vols := s.subscribed(event, 2)
	_, err := s.service.Subscribe(s.ctx, vols[0].user.ID, other.ID)
	s.Require().NoError(err)

	_, _, err = s.service.Finish(s.ctx, s.owner.user.ID, event.ID, &models.FinishEventRequest{VolunteersAttended: []id.ProfileID{vols[0].profile.ID}})
	s.Require().NoError(err)

	subscribed, err := s.service.ListSubscribed(s.ctx, vols[0].user.ID)
	s.Require().NoError(err)
	s.Len(subscribed, 2)

	attended, err := s.service.ListAttended(s.ctx, vols[0].user.ID)
	s.Require().NoError(err)
	s.Require().Len(attended, 1)
	s.Equal(event.ID, attended[0].ID)

	notAttended, err := s.service.ListAttended(s.ctx, vols[1].user.ID)
	s.Require().NoError(err)
	s.Empty(notAttended)

	created, err := s.service.ListCreated(s.ctx, s.owner.user.ID)
	s.Require().NoError(err)
	s.Len(created, 2)
}

func (s *EventServiceSuite) TestFinished() {
	finished := s.newEvent(models.EmploymentOneTime, 5, s.now)
	s.subscribed(finished, 3)
	cancelled := s.newEvent(models.EmploymentOneTime, 5, s.now)
	s.newEvent(models.EmploymentOneTime, 5, s.now)

	_, _, err := s.service.Finish(s.ctx, s.owner.user.ID, finished.ID, &models.FinishEventRequest{AllAttended: true})
	s.Require().NoError(err)
	_, _, err = s.service.Cancel(s.ctx, s.owner.user.ID, cancelled.ID, &models.CancelEventRequest{})
	s.Require().NoError(err)

	s.comments.EXPECT().CountByEvent(gomock.Any(), finished.ID).Return(2, nil)
	s.ratings.EXPECT().RatingOf(gomock.Any(), s.owner.profile.ID).Return(4.0, nil)

	summaries, err := s.service.Finished(s.ctx, s.owner.user.ID)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(finished.ID, summaries[0].Event.ID)
	s.Equal(3, summaries[0].SubscribedMembers)
	s.Equal(2, summaries[0].CommentsCount)
	s.InDelta(4.0, summaries[0].Rating, 0.0001)
}

func (s *EventServiceSuite) TestSweepFinished() {
	soon := s.now.Add(3*time.Minute - 2*time.Hour)
	oneTime := s.newEvent(models.EmploymentOneTime, 5, soon)
	s.subscribed(oneTime, 2)
	recurring := s.newEvent(models.EmploymentFull, 5, soon)
	later := s.newEvent(models.EmploymentOneTime, 5, s.now.Add(time.Hour))

	result, err := s.service.SweepFinished(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Processed)

	log, err := s.events.LatestLog(s.ctx, oneTime.ID)
	s.Require().NoError(err)
	s.True(log.Happened)
	s.Len(log.Attended, 2)
	s.False(s.reload(oneTime.ID).Active)
	s.True(s.reload(recurring.ID).Active)
	s.True(s.reload(later.ID).Active)

	again, err := s.service.SweepFinished(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, again.Processed)
	s.Equal(1, again.Skipped)

	logs, err := s.events.ListLogs(s.ctx, recurring.ID)
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *EventServiceSuite) TestSweepStartTomorrow() {
	tomorrow := time.Date(2026, 6, 2, 18, 0, 0, 0, time.UTC)
	event := s.newEvent(models.EmploymentOneTime, 5, tomorrow)
	s.subscribed(event, 1)
	s.newEvent(models.EmploymentOneTime, 5, tomorrow.Add(24*time.Hour))
	s.gateway.reset()

	result, err := s.service.SweepStartTomorrow(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Skipped)
	s.ElementsMatch([]string{
		"Event Food drive by Red Cross started tomorrow",
		"Your event Food drive started tomorrow",
	}, s.gateway.titles())
}

func countNil(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}
