package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unitedhelp/internal/platform/postgres"
	"unitedhelp/internal/profile/models"
	id "unitedhelp/pkg/domain"
	"unitedhelp/pkg/platform/sentinel"
	txcontext "unitedhelp/pkg/platform/tx"
)

// PostgresUserStore persists users and their follows.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) CreateIfAbsent(ctx context.Context, user *models.User) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, username, device_tokens, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(user.ID), user.Username, user.DeviceTokens, user.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	conn := txcontext.Conn(ctx, s.db)
	u := &models.User{}
	var raw uuid.UUID
	err := conn.QueryRowContext(ctx, `
		SELECT id, username, device_tokens, created_at FROM users WHERE id = $1
	`, uuid.UUID(userID)).Scan(&raw, &u.Username, &u.DeviceTokens, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(raw)

	rows, err := conn.QueryContext(ctx, `SELECT profile_id FROM user_following WHERE user_id = $1`, raw)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scan following: %w", err)
		}
		u.Following = append(u.Following, id.ProfileID(pid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate following: %w", err)
	}
	return u, nil
}

// FindByIDs loads users without their follow lists; callers use it to collect push tokens.
func (s *PostgresUserStore) FindByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, username, device_tokens, created_at FROM users WHERE id = ANY($1::uuid[])
	`, pq.Array(postgres.UUIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// AddDeviceToken appends token unless already present. The check and append
// happen in one statement so concurrent registrations do not lose tokens.
func (s *PostgresUserStore) AddDeviceToken(ctx context.Context, userID id.UserID, token string) (*models.User, error) {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE users
		SET device_tokens = btrim(device_tokens || ' ' || $2)
		WHERE id = $1
		  AND NOT ($2 = ANY(regexp_split_to_array(btrim(device_tokens), '\s+')))
	`, uuid.UUID(userID), token)
	if err != nil {
		return nil, fmt.Errorf("add device token: %w", err)
	}
	// No row updated means the token was present or the user is missing; FindByID tells which.
	return s.FindByID(ctx, userID)
}

func (s *PostgresUserStore) Follow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO user_following (user_id, profile_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, uuid.UUID(userID), uuid.UUID(profileID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("follow profile: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) Unfollow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		DELETE FROM user_following WHERE user_id = $1 AND profile_id = $2
	`, uuid.UUID(userID), uuid.UUID(profileID))
	if err != nil {
		return fmt.Errorf("unfollow profile: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) ListFollowers(ctx context.Context, profileID id.ProfileID) ([]*models.User, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT u.id, u.username, u.device_tokens, u.created_at
		FROM users u
		JOIN user_following f ON f.user_id = u.id
		WHERE f.profile_id = $1
	`, uuid.UUID(profileID))
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	var out []*models.User
	for rows.Next() {
		var raw uuid.UUID
		u := &models.User{}
		if err := rows.Scan(&raw, &u.Username, &u.DeviceTokens, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.ID = id.UserID(raw)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// PostgresProfileStore persists profiles. The (user_id, role) unique index
// enforces one profile per role.
type PostgresProfileStore struct {
	db *sql.DB
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

const profileColumns = `p.id, p.user_id, p.role, p.active, p.rating, p.organization, p.url, p.description, p.image, p.created_at,
	COALESCE((SELECT array_agg(ps.skill_id::text) FROM profile_skills ps WHERE ps.profile_id = p.id), '{}')`

func (s *PostgresProfileStore) CreateIfRoleAvailable(ctx context.Context, profile *models.Profile) error {
	conn := txcontext.Conn(ctx, s.db)
	_, err := conn.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, role, active, rating, organization, url, description, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(profile.ID),
		uuid.UUID(profile.UserID),
		string(profile.Role),
		profile.Active,
		profile.Rating,
		profile.Organization,
		profile.URL,
		profile.Description,
		profile.Image,
		profile.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	for _, skillID := range profile.Skills {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO profile_skills (profile_id, skill_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, uuid.UUID(profile.ID), uuid.UUID(skillID)); err != nil {
			return fmt.Errorf("insert profile skill: %w", err)
		}
	}
	return nil
}

func (s *PostgresProfileStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.id = $1`, uuid.UUID(profileID))
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *PostgresProfileStore) FindByIDs(ctx context.Context, ids []id.ProfileID) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.id = ANY($1::uuid[])`,
		pq.Array(postgres.UUIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (s *PostgresProfileStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Profile, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = $1 ORDER BY p.created_at`,
		uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (s *PostgresProfileStore) SetActive(ctx context.Context, profileID id.ProfileID, active bool) (*models.Profile, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE profiles SET active = $2 WHERE id = $1`, uuid.UUID(profileID), active)
	if err != nil {
		return nil, fmt.Errorf("set profile active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, profileID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		rawID, rawUser uuid.UUID
		role           string
		skills         []string
	)
	p := &models.Profile{}
	if err := row.Scan(&rawID, &rawUser, &role, &p.Active, &p.Rating, &p.Organization, &p.URL,
		&p.Description, &p.Image, &p.CreatedAt, pq.Array(&skills)); err != nil {
		return nil, err
	}
	p.ID = id.ProfileID(rawID)
	p.UserID = id.UserID(rawUser)
	p.Role = models.Role(role)
	for _, raw := range skills {
		if skillID, err := id.ParseSkillID(raw); err == nil {
			p.Skills = append(p.Skills, skillID)
		}
	}
	return p, nil
}

func scanProfiles(rows *sql.Rows) ([]*models.Profile, error) {
	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}
