package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unitedhelp/internal/comment/models"
	"unitedhelp/internal/comment/store"
	emodels "unitedhelp/internal/event/models"
	estore "unitedhelp/internal/event/store"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/requestcontext"
)

type CommentServiceSuite struct {
	suite.Suite
	events  *estore.InMemoryEventStore
	service *Service
	ctx     context.Context
	event   *emodels.Event
	user    id.UserID
}

func TestCommentServiceSuite(t *testing.T) {
	suite.Run(t, new(CommentServiceSuite))
}

func (s *CommentServiceSuite) SetupTest() {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.events = estore.NewInMemoryEventStore()
	var err error
	s.service, err = New(store.NewInMemoryCommentStore(), s.events)
	s.Require().NoError(err)

	s.event = s.newEvent(now)
	s.user = id.NewUserID()
}

func (s *CommentServiceSuite) newEvent(now time.Time) *emodels.Event {
	e, err := emodels.NewEvent(id.NewEventID(), id.NewProfileID(), "Clothes drive", now, now.Add(time.Hour),
		emodels.EmploymentOneTime, emodels.AudienceRefugee, 4, now)
	s.Require().NoError(err)
	s.Require().NoError(s.events.Create(s.ctx, e))
	return e
}

func (s *CommentServiceSuite) TestCreateAndList() {
	first, err := s.service.Create(s.ctx, s.user, s.event.ID, &models.CreateCommentRequest{Text: "see you there"})
	s.Require().NoError(err)
	reply, err := s.service.Create(s.ctx, s.user, s.event.ID, &models.CreateCommentRequest{Text: "bring gloves", ParentID: &first.ID})
	s.Require().NoError(err)
	s.True(reply.IsReply())

	list, err := s.service.List(s.ctx, s.event.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)

	n, err := s.service.CountByEvent(s.ctx, s.event.ID)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *CommentServiceSuite) TestUnknownEvent() {
	_, err := s.service.Create(s.ctx, s.user, id.NewEventID(), &models.CreateCommentRequest{Text: "hi"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.List(s.ctx, id.NewEventID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CommentServiceSuite) TestReplyRules() {
	s.Run("missing parent", func() {
		missing := id.NewCommentID()
		_, err := s.service.Create(s.ctx, s.user, s.event.ID, &models.CreateCommentRequest{Text: "hi", ParentID: &missing})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("parent from another event", func() {
		other := s.newEvent(requestcontext.Now(s.ctx))
		parent, err := s.service.Create(s.ctx, s.user, other.ID, &models.CreateCommentRequest{Text: "elsewhere"})
		s.Require().NoError(err)
		_, err = s.service.Create(s.ctx, s.user, s.event.ID, &models.CreateCommentRequest{Text: "hi", ParentID: &parent.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
