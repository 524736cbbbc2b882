// Package store persists events, their terminal logs and cities.
package store

import (
	"context"

	"unitedhelp/internal/event/models"
	id "unitedhelp/pkg/domain"
)

// Store is the event repository. Implementations return sentinel errors.
type Store interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	AddParticipant(ctx context.Context, eventID id.EventID, profileID id.ProfileID) error
	RemoveParticipant(ctx context.Context, eventID id.EventID, profileID id.ProfileID) error
	SetActive(ctx context.Context, eventID id.EventID, active bool) error
	SetLocation(ctx context.Context, eventID id.EventID, location string, lat, lon float64, display string) error

	AppendLog(ctx context.Context, log *models.EventLog) error
	LatestLog(ctx context.Context, eventID id.EventID) (*models.EventLog, error)
	ListLogs(ctx context.Context, eventID id.EventID) ([]*models.EventLog, error)
	ListAttended(ctx context.Context, profileIDs []id.ProfileID) ([]*models.Event, error)
	HasAttended(ctx context.Context, eventID id.EventID, profileIDs []id.ProfileID) (bool, error)

	CreateCity(ctx context.Context, city *models.City) error
	FindCity(ctx context.Context, cityID id.CityID) (*models.City, error)
	ListCities(ctx context.Context) ([]*models.City, error)
}

// TxStore adds a per-event serialization point. While fn runs no other
// transaction on the same event can run, and store is bound to the transaction.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, store Store) error) error
}
