package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"unitedhelp/internal/event/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/sentinel"
)

// InMemoryEventStore keeps events, their logs and cities in process.
// All reads return copies.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
	order  []id.EventID
	logs   map[id.EventID][]*models.EventLog
	cities map[id.CityID]*models.City

	tx *shardedEventTx
}

func NewInMemoryEventStore() *InMemoryEventStore {
	s := &InMemoryEventStore{
		events: make(map[id.EventID]*models.Event),
		logs:   make(map[id.EventID][]*models.EventLog),
		cities: make(map[id.CityID]*models.City),
	}
	s.tx = &shardedEventTx{}
	return s
}

// WithTxTimeout bounds how long RunInTx waits for and holds an event lock.
func (s *InMemoryEventStore) WithTxTimeout(timeout time.Duration) *InMemoryEventStore {
	s.tx.timeout = timeout
	return s
}

// RunInTx serializes fn with every other transaction on the same event.
func (s *InMemoryEventStore) RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, store Store) error) error {
	return s.tx.run(ctx, eventID, func(ctx context.Context) error {
		return fn(ctx, s)
	})
}

func (s *InMemoryEventStore) Create(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return sentinel.ErrConflict
	}
	s.events[event.ID] = event.Clone()
	s.order = append(s.order, event.ID)
	return nil
}

func (s *InMemoryEventStore) FindByID(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

// List returns events matching filter ordered by start time.
func (s *InMemoryEventStore) List(_ context.Context, filter models.EventFilter) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Event, 0)
	for _, eventID := range s.order {
		e := s.events[eventID]
		var city *models.City
		if e.CityID != nil {
			city = s.cities[*e.CityID]
		}
		if filter.Matches(e, city) {
			out = append(out, e.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

// Update persists the editable fields and the active flag. Participants are
// managed by AddParticipant and RemoveParticipant.
func (s *InMemoryEventStore) Update(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.events[event.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c := event.Clone()
	c.Participants = existing.Participants
	s.events[event.ID] = c
	return nil
}

func (s *InMemoryEventStore) AddParticipant(_ context.Context, eventID id.EventID, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.HasParticipant(profileID) {
		return sentinel.ErrAlreadyUsed
	}
	e.Participants = append(e.Participants, profileID)
	return nil
}

func (s *InMemoryEventStore) RemoveParticipant(_ context.Context, eventID id.EventID, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	idx := slices.Index(e.Participants, profileID)
	if idx < 0 {
		return sentinel.ErrNotFound
	}
	e.Participants = slices.Delete(e.Participants, idx, idx+1)
	return nil
}

func (s *InMemoryEventStore) SetActive(_ context.Context, eventID id.EventID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Active = active
	return nil
}

// SetLocation caches geocoded coordinates, but only while the location text
// that was resolved is still current.
func (s *InMemoryEventStore) SetLocation(_ context.Context, eventID id.EventID, location string, lat, lon float64, display string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.Location != location {
		return sentinel.ErrInvalidState
	}
	e.LocationLat = &lat
	e.LocationLon = &lon
	e.LocationDisplay = display
	return nil
}

func (s *InMemoryEventStore) AppendLog(_ context.Context, log *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[log.EventID]; !ok {
		return sentinel.ErrNotFound
	}
	s.logs[log.EventID] = append(s.logs[log.EventID], cloneLog(log))
	return nil
}

// LatestLog returns the most recent log of an event, or sentinel.ErrNotFound.
func (s *InMemoryEventStore) LatestLog(_ context.Context, eventID id.EventID) (*models.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := s.logs[eventID]
	if len(logs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return cloneLog(logs[len(logs)-1]), nil
}

// ListLogs returns an event's logs oldest first.
func (s *InMemoryEventStore) ListLogs(_ context.Context, eventID id.EventID) ([]*models.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EventLog, 0, len(s.logs[eventID]))
	for _, l := range s.logs[eventID] {
		out = append(out, cloneLog(l))
	}
	return out, nil
}

// ListAttended returns events where any of profileIDs is in the attended set
// of a happened log.
func (s *InMemoryEventStore) ListAttended(_ context.Context, profileIDs []id.ProfileID) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Event, 0)
	for _, eventID := range s.order {
		for _, l := range s.logs[eventID] {
			if l.Happened && slices.ContainsFunc(profileIDs, l.HasAttended) {
				out = append(out, s.events[eventID].Clone())
				break
			}
		}
	}
	return out, nil
}

// HasAttended reports whether any of profileIDs appears in the attended set of a
// happened log of eventID.
func (s *InMemoryEventStore) HasAttended(_ context.Context, eventID id.EventID, profileIDs []id.ProfileID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.logs[eventID] {
		if l.Happened && slices.ContainsFunc(profileIDs, l.HasAttended) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryEventStore) CreateCity(_ context.Context, city *models.City) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cities {
		if c.Name == city.Name {
			return sentinel.ErrConflict
		}
	}
	c := *city
	s.cities[city.ID] = &c
	return nil
}

func (s *InMemoryEventStore) FindCity(_ context.Context, cityID id.CityID) (*models.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cities[cityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryEventStore) ListCities(_ context.Context) ([]*models.City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.City, 0, len(s.cities))
	for _, c := range s.cities {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneLog(l *models.EventLog) *models.EventLog {
	c := *l
	c.Subscribed = slices.Clone(l.Subscribed)
	c.Attended = slices.Clone(l.Attended)
	return &c
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// numEventShards is the number of lock shards for per-event transactions.
const numEventShards = 128

const defaultEventTxTimeout = 5 * time.Second

// shardedEventTx serializes transactions per event by hashing the event ID
// onto a fixed set of mutexes.
type shardedEventTx struct {
	shards  [numEventShards]sync.Mutex
	timeout time.Duration
}

func (t *shardedEventTx) run(ctx context.Context, eventID id.EventID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultEventTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &t.shards[hashString(eventID.String())%numEventShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
