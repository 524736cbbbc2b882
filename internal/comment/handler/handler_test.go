package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitedhelp/internal/comment/service"
	"unitedhelp/internal/comment/store"
	emodels "unitedhelp/internal/event/models"
	estore "unitedhelp/internal/event/store"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/testutil"
)

func setup(t *testing.T) (http.Handler, id.EventID) {
	t.Helper()
	events := estore.NewInMemoryEventStore()
	now := time.Now()
	e, err := emodels.NewEvent(id.NewEventID(), id.NewProfileID(), "Repair day", now, now.Add(time.Hour),
		emodels.EmploymentPart, emodels.AudienceVolunteer, 2, now)
	require.NoError(t, err)
	require.NoError(t, events.Create(context.Background(), e))

	svc, err := service.New(store.NewInMemoryCommentStore(), events)
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	return r, e.ID
}

func TestComments(t *testing.T) {
	router, eventID := setup(t)
	path := "/events/" + eventID.String() + "/comments"
	user := id.NewUserID().String()

	req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"text": "  count me in "}), user)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[CommentResponse](t, rr)
	assert.Equal(t, "count me in", created.Text)

	reply := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{
		"text": "me too", "parent_id": created.ID,
	}), user)
	testutil.AssertStatus(t, testutil.DoRequest(router, reply), http.StatusCreated)

	list := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
	testutil.AssertStatusOK(t, list)
	got := testutil.UnmarshalResponse[[]CommentResponse](t, list)
	require.Len(t, *got, 2)
	require.NotNil(t, (*got)[1].ParentID)
	assert.Equal(t, created.ID, *(*got)[1].ParentID)
}

func TestCreateComment_Errors(t *testing.T) {
	router, eventID := setup(t)
	path := "/events/" + eventID.String() + "/comments"
	user := id.NewUserID().String()

	t.Run("unauthenticated", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"text": "x"}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
	t.Run("empty text", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"text": "   "}), user)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "validation")
	})
	t.Run("too long", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"text": strings.Repeat("a", 2001)}), user)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "validation")
	})
	t.Run("unknown event", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, "/events/"+id.NewEventID().String()+"/comments",
			map[string]any{"text": "x"}), user)
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusNotFound, "not_found")
	})
	t.Run("invalid event id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/events/nope/comments"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}
