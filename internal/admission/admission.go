// Package admission decides whether an identity may perform a lifecycle
// action on an event. It is pure domain logic with no I/O.
package admission

import (
	emodels "unitedhelp/internal/event/models"
	pmodels "unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
)

type Action string

const (
	ActionCreate      Action = "create"
	ActionEdit        Action = "edit"
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionFinish      Action = "finish"
	ActionCancel      Action = "cancel"
	ActionActivate    Action = "activate"
)

type Decision int

const (
	DecisionForbidden Decision = iota
	DecisionAllow
)

func (d Decision) String() string {
	if d == DecisionAllow {
		return "allow"
	}
	return "forbidden"
}

// Identity is the caller as the lifecycle engine sees it: a user and all of
// their profiles.
type Identity struct {
	UserID   id.UserID
	Profiles []*pmodels.Profile
}

// ActiveProfile returns the caller's active profile for role, if any.
// A user holds at most one profile per role.
func (i Identity) ActiveProfile(role pmodels.Role) (*pmodels.Profile, bool) {
	for _, p := range i.Profiles {
		if p.Role == role && p.Active {
			return p, true
		}
	}
	return nil, false
}

// Authorize evaluates action for identity against event. event may be nil
// only for ActionCreate.
func Authorize(identity Identity, event *emodels.Event, action Action) Decision {
	if actor(identity, event, action) != nil {
		return DecisionAllow
	}
	return DecisionForbidden
}

// Require is Authorize returning the acting profile, or a forbidden error.
func Require(identity Identity, event *emodels.Event, action Action) (*pmodels.Profile, error) {
	p := actor(identity, event, action)
	if p == nil {
		return nil, dErrors.New(dErrors.CodeForbidden, forbiddenMessage(action))
	}
	return p, nil
}

func actor(identity Identity, event *emodels.Event, action Action) *pmodels.Profile {
	switch action {
	case ActionCreate:
		organizer, ok := identity.ActiveProfile(pmodels.RoleOrganizer)
		if !ok {
			return nil
		}
		return organizer

	case ActionSubscribe, ActionUnsubscribe:
		if event == nil {
			return nil
		}
		p, ok := identity.ActiveProfile(pmodels.Role(event.To))
		if !ok {
			return nil
		}
		return p

	case ActionEdit, ActionFinish, ActionCancel, ActionActivate:
		if event == nil {
			return nil
		}
		organizer, ok := identity.ActiveProfile(pmodels.RoleOrganizer)
		if !ok || organizer.ID != event.Owner {
			return nil
		}
		return organizer

	default:
		return nil
	}
}

func forbiddenMessage(action Action) string {
	switch action {
	case ActionCreate:
		return "an active organizer profile is required"
	case ActionSubscribe, ActionUnsubscribe:
		return "your profile role does not match this event"
	default:
		return "only the event owner can " + string(action) + " this event"
	}
}
