package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitedhelp/internal/event/service"
	"unitedhelp/internal/event/store"
	pmodels "unitedhelp/internal/profile/models"
	pstore "unitedhelp/internal/profile/store"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/testutil"
)

type fixture struct {
	router   http.Handler
	users    *pstore.InMemoryUserStore
	profiles *pstore.InMemoryProfileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    pstore.NewInMemoryUserStore(),
		profiles: pstore.NewInMemoryProfileStore(),
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(store.NewInMemoryEventStore(), f.users, f.profiles, service.WithLogger(logger))
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	f.router = r
	return f
}

// member creates a user with one active profile and returns the user ID.
func (f *fixture) member(t *testing.T, role pmodels.Role) string {
	t.Helper()
	ctx := context.Background()
	user := &pmodels.User{ID: id.NewUserID(), Username: string(role)}
	require.NoError(t, f.users.CreateIfAbsent(ctx, user))
	require.NoError(t, f.profiles.CreateIfRoleAvailable(ctx, &pmodels.Profile{
		ID: id.NewProfileID(), UserID: user.ID, Role: role, Active: true, Organization: "Kyiv Aid",
	}))
	return user.ID.String()
}

func (f *fixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, path, body)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	if userID != "" {
		req = testutil.WithUserID(req, userID)
	}
	return testutil.DoRequest(f.router, req)
}

func (f *fixture) createEvent(t *testing.T, owner string, required int) EventResponse {
	t.Helper()
	start := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	res := f.do(t, http.MethodPost, "/events", owner, map[string]any{
		"name":             "Sorting donations",
		"start_time":       start,
		"end_time":         start.Add(3 * time.Hour),
		"employment":       "one_time",
		"to":               "volunteer",
		"required_members": required,
	})
	testutil.AssertStatus(t, res, http.StatusCreated)
	return *testutil.UnmarshalResponse[EventResponse](t, res)
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t)

	t.Run("requires authentication", func(t *testing.T) {
		res := f.do(t, http.MethodPost, "/events", "", map[string]any{"name": "x"})
		testutil.AssertStatusAndError(t, res, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("volunteer cannot create", func(t *testing.T) {
		vol := f.member(t, pmodels.RoleVolunteer)
		start := time.Now()
		res := f.do(t, http.MethodPost, "/events", vol, map[string]any{
			"name": "x", "start_time": start, "end_time": start, "employment": "full",
			"to": "volunteer", "required_members": 1,
		})
		testutil.AssertStatusAndError(t, res, http.StatusForbidden, "forbidden")
	})

	t.Run("invalid body is a validation error", func(t *testing.T) {
		owner := f.member(t, pmodels.RoleOrganizer)
		res := f.do(t, http.MethodPost, "/events", owner, map[string]any{"name": "x", "required_members": 0})
		testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "validation")
	})

	t.Run("organizer creates an active event", func(t *testing.T) {
		owner := f.member(t, pmodels.RoleOrganizer)
		event := f.createEvent(t, owner, 2)
		assert.True(t, event.Active)
		assert.Equal(t, 2, event.OpenSlots)
		assert.Empty(t, event.Participants)
	})
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	event := f.createEvent(t, owner, 1)
	base := "/events/" + event.ID.String()

	first := f.member(t, pmodels.RoleVolunteer)
	second := f.member(t, pmodels.RoleVolunteer)
	refugee := f.member(t, pmodels.RoleRefugee)

	res := f.do(t, http.MethodPost, base+"/subscribe", refugee, nil)
	testutil.AssertStatusAndError(t, res, http.StatusForbidden, "forbidden")

	res = f.do(t, http.MethodPost, base+"/subscribe", first, nil)
	testutil.AssertStatusOK(t, res)
	subscribed := testutil.UnmarshalResponse[EventResponse](t, res)
	assert.Len(t, subscribed.Participants, 1)
	assert.Equal(t, 0, subscribed.OpenSlots)

	res = f.do(t, http.MethodPost, base+"/subscribe", second, nil)
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "conflict")

	res = f.do(t, http.MethodPost, base+"/unsubscribe", second, nil)
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "conflict")

	res = f.do(t, http.MethodGet, "/events/subscribed", first, nil)
	testutil.AssertStatusOK(t, res)
	assert.Len(t, *testutil.UnmarshalResponse[[]EventResponse](t, res), 1)

	res = f.do(t, http.MethodPost, base+"/finish", first, map[string]any{"volunteers_attended": []string{}})
	testutil.AssertStatusAndError(t, res, http.StatusForbidden, "forbidden")

	res = f.do(t, http.MethodPost, base+"/finish", owner, map[string]any{"all_attended": true})
	testutil.AssertStatusOK(t, res)
	finished := testutil.UnmarshalResponse[TransitionResponse](t, res)
	assert.False(t, finished.Event.Active)
	assert.True(t, finished.Log.Happened)
	assert.Len(t, finished.Log.VolunteersAttended, 1)

	res = f.do(t, http.MethodPost, base+"/cancel", owner, map[string]any{"message": "late"})
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "conflict")

	res = f.do(t, http.MethodPost, base+"/activate", owner, nil)
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "conflict")

	res = f.do(t, http.MethodGet, base+"/logs", owner, nil)
	testutil.AssertStatusOK(t, res)
	assert.Len(t, *testutil.UnmarshalResponse[[]EventLogResponse](t, res), 1)

	res = f.do(t, http.MethodGet, base+"/logs", first, nil)
	testutil.AssertStatusAndError(t, res, http.StatusForbidden, "forbidden")

	res = f.do(t, http.MethodGet, "/events/attended", first, nil)
	testutil.AssertStatusOK(t, res)
	assert.Len(t, *testutil.UnmarshalResponse[[]EventResponse](t, res), 1)

	res = f.do(t, http.MethodGet, "/events/finished", owner, nil)
	testutil.AssertStatusOK(t, res)
	summaries := *testutil.UnmarshalResponse[[]FinishedEventResponse](t, res)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].SubscribedMembers)
}

func TestUnsubscribe_NoContent(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	event := f.createEvent(t, owner, 3)
	vol := f.member(t, pmodels.RoleVolunteer)
	base := "/events/" + event.ID.String()

	testutil.AssertStatusOK(t, f.do(t, http.MethodPost, base+"/subscribe", vol, nil))
	res := f.do(t, http.MethodPost, base+"/unsubscribe", vol, nil)
	testutil.AssertStatus(t, res, http.StatusNoContent)
}

func TestCancelAndActivate(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	event := f.createEvent(t, owner, 3)
	base := "/events/" + event.ID.String()

	res := f.do(t, http.MethodPost, base+"/cancel", owner, map[string]any{"message": "Venue closed"})
	testutil.AssertStatusOK(t, res)
	cancelled := testutil.UnmarshalResponse[TransitionResponse](t, res)
	assert.False(t, cancelled.Log.Happened)

	res = f.do(t, http.MethodPost, base+"/activate", owner, nil)
	testutil.AssertStatusOK(t, res)
	assert.True(t, testutil.UnmarshalResponse[EventResponse](t, res).Active)
}

func TestListEvents_Filters(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	f.createEvent(t, owner, 3)

	res := f.do(t, http.MethodGet, "/events?q=donations&employment=one_time&active=true", "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Len(t, *testutil.UnmarshalResponse[[]EventResponse](t, res), 1)

	res = f.do(t, http.MethodGet, "/events?q=medical", "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Empty(t, *testutil.UnmarshalResponse[[]EventResponse](t, res))

	res = f.do(t, http.MethodGet, "/events?start_after=2026-08-01T00:00:00Z", "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Empty(t, *testutil.UnmarshalResponse[[]EventResponse](t, res))

	for _, query := range []string{"active=maybe", "employment=weekly", "skill=nope", "start_after=yesterday", "limit=-1"} {
		res = f.do(t, http.MethodGet, "/events?"+query, "", nil)
		testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "bad_request")
	}
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	event := f.createEvent(t, owner, 3)

	res := f.do(t, http.MethodGet, "/events/"+event.ID.String(), "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Equal(t, event.ID, testutil.UnmarshalResponse[EventResponse](t, res).ID)

	res = f.do(t, http.MethodGet, "/events/"+id.NewEventID().String(), "", nil)
	testutil.AssertStatusAndError(t, res, http.StatusNotFound, "not_found")

	res = f.do(t, http.MethodGet, "/events/not-a-uuid", "", nil)
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "bad_request")
}

func TestEditEvent(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, pmodels.RoleOrganizer)
	other := f.member(t, pmodels.RoleOrganizer)
	event := f.createEvent(t, owner, 3)
	path := "/events/" + event.ID.String()

	res := f.do(t, http.MethodPatch, path, other, map[string]any{"name": "Hijacked"})
	testutil.AssertStatusAndError(t, res, http.StatusForbidden, "forbidden")

	res = f.do(t, http.MethodPatch, path, owner, map[string]any{"name": "Sorting winter clothes", "required_members": 5})
	testutil.AssertStatusOK(t, res)
	edited := testutil.UnmarshalResponse[EventResponse](t, res)
	assert.Equal(t, "Sorting winter clothes", edited.Name)
	assert.Equal(t, 5, edited.RequiredMembers)
}

func TestCities(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/cities", "", map[string]any{"name": "Kyiv", "alias": "Kyiv  Kiev"})
	testutil.AssertStatus(t, res, http.StatusCreated)
	city := testutil.UnmarshalResponse[CityResponse](t, res)
	assert.Equal(t, "Kyiv Kiev", city.Alias)

	res = f.do(t, http.MethodPost, "/cities", "", map[string]any{"name": "Kyiv"})
	testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "conflict")

	res = f.do(t, http.MethodGet, "/cities", "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Len(t, *testutil.UnmarshalResponse[[]CityResponse](t, res), 1)
}

func TestCreateCity_NotOnPublicRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(store.NewInMemoryEventStore(), pstore.NewInMemoryUserStore(), pstore.NewInMemoryProfileStore(), service.WithLogger(logger))
	require.NoError(t, err)
	h := New(svc, logger)

	public := chi.NewRouter()
	h.Register(public)
	res := testutil.DoRequest(public, testutil.NewJSONRequest(t, http.MethodPost, "/cities", map[string]any{"name": "Kyiv"}))
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)

	admin := chi.NewRouter()
	h.RegisterAdmin(admin)
	res = testutil.DoRequest(admin, testutil.NewJSONRequest(t, http.MethodPost, "/cities", map[string]any{"name": "Kyiv"}))
	testutil.AssertStatus(t, res, http.StatusCreated)
}

func TestSweeps(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/internal/sweeps/event-finished", "", nil)
	testutil.AssertStatusOK(t, res)
	finished := testutil.UnmarshalResponse[SweepResponse](t, res)
	assert.Equal(t, service.SweepEventFinished, finished.Sweep)

	res = f.do(t, http.MethodPost, "/internal/sweeps/event-start-tomorrow", "", nil)
	testutil.AssertStatusOK(t, res)
	assert.Equal(t, service.SweepEventStartTomorrow, testutil.UnmarshalResponse[SweepResponse](t, res).Sweep)
}

