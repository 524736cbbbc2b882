package service

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"unitedhelp/internal/event/models"
	"unitedhelp/internal/notification"
	pmodels "unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
)

const planTimeLayout = "2006-01-02 15:04"

// audienceLabel renders a role the way clients show it, e.g. "Volunteer".
func audienceLabel(role string) string {
	return cases.Title(language.English).String(role)
}

func (s *Service) baseMessage(event *models.Event, actor *pmodels.Profile, actorName string, notifyType notification.NotifyType) notification.Message {
	msg := notification.Message{
		NotifyType:     notifyType,
		ToProfile:      audienceLabel(string(event.To)),
		EventID:        event.ID,
		EventName:      event.Name,
		ActorName:      actorName,
		ActorProfileID: actor.ID,
	}
	if event.Image != "" {
		msg.Image = s.publicBaseURL + event.Image
	}
	return msg
}

func planBody(event *models.Event) string {
	return fmt.Sprintf("Event planned from %s to %s",
		event.StartTime.Format(planTimeLayout), event.EndTime.Format(planTimeLayout))
}

// ownerOf loads the owner profile and its user. Failures are logged and
// reported as ok=false so the caller skips notification.
func (s *Service) ownerOf(ctx context.Context, event *models.Event) (*pmodels.Profile, *pmodels.User, bool) {
	owner, err := s.profiles.FindByID(ctx, event.Owner)
	if err != nil {
		s.warn(ctx, "load event owner for notification failed", err, event.ID)
		return nil, nil, false
	}
	users, err := s.users.FindByIDs(ctx, []id.UserID{owner.UserID})
	if err != nil || len(users) == 0 {
		s.warn(ctx, "load owner user for notification failed", err, event.ID)
		return nil, nil, false
	}
	return owner, users[0], true
}

// audience collects the users behind the event's participants plus the
// followers of the owner, each user once.
func (s *Service) audience(ctx context.Context, event *models.Event, participants []id.ProfileID) []*pmodels.User {
	seen := map[id.UserID]struct{}{}
	var out []*pmodels.User
	add := func(users []*pmodels.User) {
		for _, u := range users {
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			out = append(out, u)
		}
	}

	add(s.usersOf(ctx, event.ID, participants))

	followers, err := s.users.ListFollowers(ctx, event.Owner)
	if err != nil {
		s.warn(ctx, "load followers for notification failed", err, event.ID)
	}
	add(followers)
	return out
}

// send fans msg out after the transition committed. The fan-out is detached
// from request cancellation; its outcome never changes the transition result.
func (s *Service) send(ctx context.Context, users []*pmodels.User, msg notification.Message) {
	if s.notifier == nil || len(users) == 0 {
		return
	}
	recipients := make([]notification.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, notification.Recipient{UserID: u.ID, Tokens: u.DeviceTokens})
	}
	result := s.notifier.Notify(context.WithoutCancel(ctx), recipients, msg)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "notification dispatched",
			"event_id", msg.EventID.String(),
			"notify_type", string(msg.NotifyType),
			"recipients", len(recipients),
			"tokens", result.TotalTokens,
			"delivered", result.SuccessCount,
			"failed", result.FailureCount,
		)
	}
}

// notifyOwner tells the owner that actor joined or left.
func (s *Service) notifyOwner(ctx context.Context, event *models.Event, actor *pmodels.Profile, actorUser id.UserID, notifyType notification.NotifyType) {
	if s.notifier == nil {
		return
	}
	_, ownerUser, ok := s.ownerOf(ctx, event)
	if !ok {
		return
	}
	actorName := actorUser.String()
	if users, err := s.users.FindByIDs(ctx, []id.UserID{actorUser}); err == nil && len(users) == 1 {
		actorName = users[0].Username
	}

	msg := s.baseMessage(event, actor, actorName, notifyType)
	msg.ToProfile = audienceLabel(string(pmodels.RoleOrganizer))
	if notifyType == notification.NotifySubscribe {
		msg.Title = fmt.Sprintf("%s subscribed to %s", actorName, event.Name)
	} else {
		msg.Title = fmt.Sprintf("%s unsubscribed from %s", actorName, event.Name)
	}
	msg.Body = fmt.Sprintf("%d of %d places taken", len(event.Participants), event.RequiredMembers)
	s.send(ctx, []*pmodels.User{ownerUser}, msg)
}

// notifyAudience tells participants and the owner's followers about a
// lifecycle change made by the owner.
func (s *Service) notifyAudience(ctx context.Context, event *models.Event, participants []id.ProfileID, notifyType notification.NotifyType, detail string) {
	if s.notifier == nil {
		return
	}
	owner, ownerUser, ok := s.ownerOf(ctx, event)
	if !ok {
		return
	}
	msg := s.baseMessage(event, owner, ownerUser.Username, notifyType)
	org := owner.DisplayName()
	switch notifyType {
	case notification.NotifyFinish:
		msg.Title = fmt.Sprintf("Event %s by %s finished", event.Name, org)
		msg.Body = "Thank you for taking part"
	case notification.NotifyCancel:
		msg.Title = fmt.Sprintf("Event %s by %s cancelled", event.Name, org)
		msg.Body = detail
		if msg.Body == "" {
			msg.Body = "The organizer cancelled this event"
		}
	case notification.NotifyActivate:
		msg.Title = fmt.Sprintf("Event %s by %s is active again", event.Name, org)
		msg.Body = planBody(event)
	}
	s.send(ctx, s.audience(ctx, event, participants), msg)
}

// notifyStartTomorrow sends the reminder to participants and to the owner.
func (s *Service) notifyStartTomorrow(ctx context.Context, event *models.Event) {
	if s.notifier == nil {
		return
	}
	owner, ownerUser, ok := s.ownerOf(ctx, event)
	if !ok {
		return
	}

	participants := s.usersOf(ctx, event.ID, event.Participants)
	msg := s.baseMessage(event, owner, ownerUser.Username, notification.NotifyStart)
	msg.Title = fmt.Sprintf("Event %s by %s started tomorrow", event.Name, owner.DisplayName())
	msg.Body = planBody(event)
	s.send(ctx, participants, msg)

	ownerMsg := s.baseMessage(event, owner, ownerUser.Username, notification.NotifyStart)
	ownerMsg.ToProfile = audienceLabel(string(pmodels.RoleOrganizer))
	ownerMsg.Title = fmt.Sprintf("Your event %s started tomorrow", event.Name)
	ownerMsg.Body = planBody(event)
	s.send(ctx, []*pmodels.User{ownerUser}, ownerMsg)
}

// usersOf maps profile IDs to their users.
func (s *Service) usersOf(ctx context.Context, eventID id.EventID, profileIDs []id.ProfileID) []*pmodels.User {
	if len(profileIDs) == 0 {
		return nil
	}
	profiles, err := s.profiles.FindByIDs(ctx, profileIDs)
	if err != nil {
		s.warn(ctx, "load participants for notification failed", err, eventID)
		return nil
	}
	userIDs := make([]id.UserID, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		s.warn(ctx, "load participant users for notification failed", err, eventID)
		return nil
	}
	return users
}

func (s *Service) warn(ctx context.Context, msg string, err error, eventID id.EventID) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "error", err, "event_id", eventID.String())
	}
}
