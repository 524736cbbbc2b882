package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unitedhelp/internal/event/models"
	"unitedhelp/internal/platform/postgres"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	txcontext "unitedhelp/pkg/platform/tx"
)

// PostgresEventStore persists events in PostgreSQL. RunInTx takes a row lock
// on the event, so concurrent transactions on one event run one at a time.
type PostgresEventStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

func NewPostgresEventStore(db *sql.DB, txTimeout time.Duration) *PostgresEventStore {
	if txTimeout <= 0 {
		txTimeout = defaultEventTxTimeout
	}
	return &PostgresEventStore{db: db, txTimeout: txTimeout}
}

const eventColumns = `
	e.id, e.active, e.name, e.description, e.image, e.start_time, e.end_time, e.reg_date,
	e.city_id, e.location, e.location_lat, e.location_lon, e.location_display,
	e.employment, e.audience, e.owner_id, e.required_members,
	COALESCE((SELECT array_agg(p.profile_id::text ORDER BY p.position)
		FROM event_participants p WHERE p.event_id = e.id), '{}') AS participants,
	COALESCE((SELECT array_agg(s.skill_id::text ORDER BY s.skill_id)
		FROM event_skills s WHERE s.event_id = e.id), '{}') AS skills`

func (s *PostgresEventStore) RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, store Store) error) error {
	if _, ok := txcontext.From(ctx); ok {
		if err := s.lockEvent(ctx, eventID); err != nil {
			return err
		}
		return fn(ctx, s)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	txCtx := txcontext.WithTx(ctx, sqlTx)
	if err := s.lockEvent(txCtx, eventID); err != nil {
		return err
	}
	if err := fn(txCtx, s); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit event tx: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) lockEvent(ctx context.Context, eventID id.EventID) error {
	var locked uuid.UUID
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id FROM events WHERE id = $1 FOR UPDATE`, uuid.UUID(eventID)).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock event: %w", err)
	}
	return nil
}

// inTx runs fn in the transaction already in ctx, or in a new one.
func (s *PostgresEventStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *PostgresEventStore) Create(ctx context.Context, event *models.Event) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
			INSERT INTO events (id, active, name, description, image, start_time, end_time, reg_date,
				city_id, location, location_lat, location_lon, location_display,
				employment, audience, owner_id, required_members)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, uuid.UUID(event.ID), event.Active, event.Name, event.Description, event.Image,
			event.StartTime, event.EndTime, event.RegDate,
			nullCity(event.CityID), event.Location, nullFloat(event.LocationLat), nullFloat(event.LocationLon), event.LocationDisplay,
			string(event.Employment), string(event.To), uuid.UUID(event.Owner), event.RequiredMembers)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert event: %w", err)
		}
		return s.replaceSkills(ctx, event.ID, event.Skills)
	})
}

func (s *PostgresEventStore) FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, uuid.UUID(eventID))
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return event, nil
}

func (s *PostgresEventStore) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + eventColumns + ` FROM events e` + where + ` ORDER BY e.start_time, e.id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.queryEvents(ctx, query, args...)
}

func filterClause(f models.EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Active != nil {
		add("e.active = $%d", *f.Active)
	}
	if f.Query != "" {
		args = append(args, "%"+escapeLike(f.Query)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(e.name ILIKE $%d OR e.description ILIKE $%d)", n, n))
	}
	if f.Employment != "" {
		add("e.employment = $%d", string(f.Employment))
	}
	if f.City != "" {
		add("EXISTS (SELECT 1 FROM cities c WHERE c.id = e.city_id AND c.alias ILIKE $%d)", "%"+escapeLike(f.City)+"%")
	}
	if f.Skill != nil {
		add("EXISTS (SELECT 1 FROM event_skills s WHERE s.event_id = e.id AND s.skill_id = $%d)", uuid.UUID(*f.Skill))
	}
	if f.StartAfter != nil {
		add("e.start_time >= $%d", *f.StartAfter)
	}
	if f.EndBefore != nil {
		add("e.end_time <= $%d", *f.EndBefore)
	}
	if f.Owner != nil {
		add("e.owner_id = $%d", uuid.UUID(*f.Owner))
	}
	if len(f.Participants) > 0 {
		add("EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.profile_id = ANY($%d::uuid[]))",
			pq.Array(postgres.UUIDStrings(f.Participants)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *PostgresEventStore) Update(ctx context.Context, event *models.Event) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
			UPDATE events SET active = $2, name = $3, description = $4, image = $5,
				start_time = $6, end_time = $7, city_id = $8, location = $9,
				location_lat = $10, location_lon = $11, location_display = $12,
				employment = $13, required_members = $14, updated_at = now()
			WHERE id = $1
		`, uuid.UUID(event.ID), event.Active, event.Name, event.Description, event.Image,
			event.StartTime, event.EndTime, nullCity(event.CityID), event.Location,
			nullFloat(event.LocationLat), nullFloat(event.LocationLon), event.LocationDisplay,
			string(event.Employment), event.RequiredMembers)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return s.replaceSkills(ctx, event.ID, event.Skills)
	})
}

func (s *PostgresEventStore) replaceSkills(ctx context.Context, eventID id.EventID, skills []id.SkillID) error {
	conn := txcontext.Conn(ctx, s.db)
	if _, err := conn.ExecContext(ctx, `DELETE FROM event_skills WHERE event_id = $1`, uuid.UUID(eventID)); err != nil {
		return fmt.Errorf("clear event skills: %w", err)
	}
	if len(skills) == 0 {
		return nil
	}
	_, err := conn.ExecContext(ctx, `
		INSERT INTO event_skills (event_id, skill_id)
		SELECT $1, unnest($2::uuid[])
	`, uuid.UUID(eventID), pq.Array(postgres.UUIDStrings(skills)))
	if err != nil {
		return fmt.Errorf("insert event skills: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) AddParticipant(ctx context.Context, eventID id.EventID, profileID id.ProfileID) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO event_participants (event_id, profile_id) VALUES ($1, $2)
	`, uuid.UUID(eventID), uuid.UUID(profileID))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) RemoveParticipant(ctx context.Context, eventID id.EventID, profileID id.ProfileID) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		DELETE FROM event_participants WHERE event_id = $1 AND profile_id = $2
	`, uuid.UUID(eventID), uuid.UUID(profileID))
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresEventStore) SetActive(ctx context.Context, eventID id.EventID, active bool) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE events SET active = $2, updated_at = now() WHERE id = $1`, uuid.UUID(eventID), active)
	if err != nil {
		return fmt.Errorf("set event active: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresEventStore) SetLocation(ctx context.Context, eventID id.EventID, location string, lat, lon float64, display string) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE events SET location_lat = $3, location_lon = $4, location_display = $5
		WHERE id = $1 AND location = $2
	`, uuid.UUID(eventID), location, lat, lon, display)
	if err != nil {
		return fmt.Errorf("set event location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresEventStore) AppendLog(ctx context.Context, log *models.EventLog) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO event_logs (id, event_id, volunteers_subscribed, volunteers_attended, happened, log_date)
		VALUES ($1, $2, $3::uuid[], $4::uuid[], $5, $6)
	`, uuid.UUID(log.ID), uuid.UUID(log.EventID),
		pq.Array(postgres.UUIDStrings(log.Subscribed)), pq.Array(postgres.UUIDStrings(log.Attended)),
		log.Happened, log.LogDate)
	if err != nil {
		return fmt.Errorf("append event log: %w", err)
	}
	return nil
}

const logColumns = `id, event_id, volunteers_subscribed::text[], volunteers_attended::text[], happened, log_date`

func (s *PostgresEventStore) LatestLog(ctx context.Context, eventID id.EventID) (*models.EventLog, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+logColumns+` FROM event_logs WHERE event_id = $1
		ORDER BY log_date DESC LIMIT 1
	`, uuid.UUID(eventID))
	log, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest event log: %w", err)
	}
	return log, nil
}

func (s *PostgresEventStore) ListLogs(ctx context.Context, eventID id.EventID) ([]*models.EventLog, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT `+logColumns+` FROM event_logs WHERE event_id = $1 ORDER BY log_date
	`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	out := make([]*models.EventLog, 0)
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

func (s *PostgresEventStore) ListAttended(ctx context.Context, profileIDs []id.ProfileID) ([]*models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events e
		WHERE EXISTS (
			SELECT 1 FROM event_logs l
			WHERE l.event_id = e.id AND l.happened AND l.volunteers_attended && $1::uuid[]
		)
		ORDER BY e.start_time, e.id
	`, pq.Array(postgres.UUIDStrings(profileIDs)))
}

func (s *PostgresEventStore) HasAttended(ctx context.Context, eventID id.EventID, profileIDs []id.ProfileID) (bool, error) {
	var exists bool
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM event_logs
			WHERE event_id = $1 AND happened AND volunteers_attended && $2::uuid[]
		)
	`, uuid.UUID(eventID), pq.Array(postgres.UUIDStrings(profileIDs))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

func (s *PostgresEventStore) CreateCity(ctx context.Context, city *models.City) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO cities (id, name, alias) VALUES ($1, $2, $3)`,
		uuid.UUID(city.ID), city.Name, city.Alias)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert city: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) FindCity(ctx context.Context, cityID id.CityID) (*models.City, error) {
	c := &models.City{}
	var raw uuid.UUID
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, alias FROM cities WHERE id = $1`, uuid.UUID(cityID)).Scan(&raw, &c.Name, &c.Alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find city: %w", err)
	}
	c.ID = id.CityID(raw)
	return c, nil
}

func (s *PostgresEventStore) ListCities(ctx context.Context) ([]*models.City, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `SELECT id, name, alias FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	out := make([]*models.City, 0)
	for rows.Next() {
		c := &models.City{}
		var raw uuid.UUID
		if err := rows.Scan(&raw, &c.Name, &c.Alias); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		c.ID = id.CityID(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresEventStore) queryEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		e            models.Event
		rawID        uuid.UUID
		rawOwner     uuid.UUID
		city         uuid.NullUUID
		lat, lon     sql.NullFloat64
		employment   string
		audience     string
		participants pq.StringArray
		skills       pq.StringArray
	)
	err := row.Scan(&rawID, &e.Active, &e.Name, &e.Description, &e.Image, &e.StartTime, &e.EndTime, &e.RegDate,
		&city, &e.Location, &lat, &lon, &e.LocationDisplay,
		&employment, &audience, &rawOwner, &e.RequiredMembers,
		&participants, &skills)
	if err != nil {
		return nil, err
	}
	e.ID = id.EventID(rawID)
	e.Owner = id.ProfileID(rawOwner)
	e.Employment = models.Employment(employment)
	e.To = models.Audience(audience)
	if city.Valid {
		cityID := id.CityID(city.UUID)
		e.CityID = &cityID
	}
	if lat.Valid && lon.Valid {
		e.LocationLat = &lat.Float64
		e.LocationLon = &lon.Float64
	}
	if e.Participants, err = parseIDs(participants, id.ParseProfileID); err != nil {
		return nil, err
	}
	if e.Skills, err = parseIDs(skills, id.ParseSkillID); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanLog(row scanner) (*models.EventLog, error) {
	var (
		l                    models.EventLog
		rawID, rawEvent      uuid.UUID
		subscribed, attended pq.StringArray
	)
	if err := row.Scan(&rawID, &rawEvent, &subscribed, &attended, &l.Happened, &l.LogDate); err != nil {
		return nil, err
	}
	l.ID = id.EventLogID(rawID)
	l.EventID = id.EventID(rawEvent)
	var err error
	if l.Subscribed, err = parseIDs(subscribed, id.ParseProfileID); err != nil {
		return nil, err
	}
	if l.Attended, err = parseIDs(attended, id.ParseProfileID); err != nil {
		return nil, err
	}
	return &l, nil
}

func parseIDs[T any](raw []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		v, err := parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullCity(cityID *id.CityID) uuid.NullUUID {
	if cityID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*cityID), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
