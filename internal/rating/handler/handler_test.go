package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitedhelp/internal/rating/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/testutil"
)

type stubService struct {
	gotScore int
	err      error
}

func (s *stubService) CastVote(_ context.Context, voter id.UserID, eventID id.EventID, applicant id.ProfileID, score int) (*models.Voting, error) {
	s.gotScore = score
	if s.err != nil {
		return nil, s.err
	}
	return &models.Voting{ID: id.NewVotingID(), Voter: voter, EventID: eventID, Applicant: applicant, Score: score}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	return r
}

func TestCastVote(t *testing.T) {
	eventPath := "/events/" + id.NewEventID().String() + "/votes"
	applicant := id.NewProfileID()
	user := id.NewUserID().String()

	t.Run("created", func(t *testing.T) {
		svc := &stubService{}
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, eventPath, map[string]any{
			"applicant": applicant, "score": -3,
		}), user)
		rr := testutil.DoRequest(newRouter(svc), req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, -3, svc.gotScore)
		resp := testutil.UnmarshalResponse[VoteResponse](t, rr)
		assert.Equal(t, applicant, resp.Applicant)
	})

	t.Run("zero score is a valid vote", func(t *testing.T) {
		svc := &stubService{}
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, eventPath, map[string]any{
			"applicant": applicant, "score": 0,
		}), user)
		rr := testutil.DoRequest(newRouter(svc), req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("missing score", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, eventPath, map[string]any{
			"applicant": applicant,
		}), user)
		rr := testutil.DoRequest(newRouter(&stubService{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
	})

	t.Run("duplicate maps to 400", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeConflict, "already voted")}
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodPost, eventPath, map[string]any{
			"applicant": applicant, "score": 1,
		}), user)
		rr := testutil.DoRequest(newRouter(svc), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "conflict")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewJSONRequest(t, http.MethodPost, eventPath, map[string]any{}))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
