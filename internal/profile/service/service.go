package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"unitedhelp/internal/profile/metrics"
	"unitedhelp/internal/profile/models"
	"unitedhelp/pkg/attrs"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/sentinel"
	"unitedhelp/pkg/requestcontext"
)

const maxDeviceTokenLength = 4096

type UserStore interface {
	CreateIfAbsent(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	AddDeviceToken(ctx context.Context, userID id.UserID, token string) (*models.User, error)
	Follow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error
	Unfollow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error
}

type ProfileStore interface {
	CreateIfRoleAvailable(ctx context.Context, profile *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Profile, error)
	SetActive(ctx context.Context, profileID id.ProfileID, active bool) (*models.Profile, error)
}

// RatingSource recomputes an organizer's rating from votes.
type RatingSource interface {
	RatingOf(ctx context.Context, profileID id.ProfileID) (float64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages users, their role profiles, follows and push tokens.
type Service struct {
	users          UserStore
	profiles       ProfileStore
	ratings        RatingSource
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRatingSource makes GetProfile return the recomputed rating.
func WithRatingSource(r RatingSource) Option {
	return func(s *Service) {
		s.ratings = r
	}
}

func New(users UserStore, profiles ProfileStore, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	s := &Service{users: users, profiles: profiles}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureUser records the authenticated user on first sight.
func (s *Service) EnsureUser(ctx context.Context, userID id.UserID, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = userID.String()
	}
	err := s.users.CreateIfAbsent(ctx, &models.User{
		ID:        userID,
		Username:  username,
		CreatedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register user")
	}
	return s.findUser(ctx, userID)
}

// Me returns the caller's account and all their profiles.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.User, []*models.Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := s.profiles.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return user, profiles, nil
}

// CreateProfile creates one of the caller's role profiles. A user holds at most
// one profile per role, and only an active admin may create another admin profile.
func (s *Service) CreateProfile(ctx context.Context, userID id.UserID, req *models.CreateProfileRequest) (*models.Profile, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.EnsureUser(ctx, userID, ""); err != nil {
		return nil, err
	}

	if req.Role == models.RoleAdmin {
		isAdmin, err := s.isActiveAdmin(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			return nil, dErrors.New(dErrors.CodeForbidden, "only an admin can create admin profiles")
		}
	}

	profile, err := models.NewProfile(id.NewProfileID(), userID, req.Role, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	profile.Organization = req.Organization
	profile.URL = req.URL
	profile.Description = req.Description
	profile.Image = req.Image
	profile.Skills = req.Skills

	if err := s.profiles.CreateIfRoleAvailable(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "you already have role "+string(req.Role))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}

	s.logAudit(ctx, string(audit.EventProfileCreated),
		"user_id", userID.String(),
		"profile_id", profile.ID.String(),
		"role", string(profile.Role),
	)
	if s.metrics != nil {
		s.metrics.IncrementProfileCreated(string(profile.Role))
	}
	return profile, nil
}

// GetProfile returns a profile with its rating recomputed from votes.
func (s *Service) GetProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	profile, err := s.findProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if s.ratings != nil {
		rating, err := s.ratings.RatingOf(ctx, profileID)
		if err != nil {
			return nil, err
		}
		profile.Rating = rating
	}
	return profile, nil
}

// SetProfileActive toggles a profile's active flag. Only active admins may call it.
func (s *Service) SetProfileActive(ctx context.Context, callerID id.UserID, profileID id.ProfileID, active bool) (*models.Profile, error) {
	isAdmin, err := s.isActiveAdmin(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin profile required")
	}

	profile, err := s.profiles.SetActive(ctx, profileID, active)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}

	event := audit.EventProfileDeactivated
	if active {
		event = audit.EventProfileActivated
	}
	s.logAudit(ctx, string(event),
		"user_id", profile.UserID.String(),
		"profile_id", profile.ID.String(),
		"actor_id", callerID.String(),
	)
	return profile, nil
}

// ToggleProfileActive flips a profile's active flag on behalf of an admin.
func (s *Service) ToggleProfileActive(ctx context.Context, callerID id.UserID, profileID id.ProfileID) (*models.Profile, error) {
	profile, err := s.findProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.SetProfileActive(ctx, callerID, profileID, !profile.Active)
}

// Follow subscribes the caller to an organizer's lifecycle notifications.
func (s *Service) Follow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error {
	target, err := s.findProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if target.Role != models.RoleOrganizer {
		return dErrors.New(dErrors.CodeValidation, "only organizer profiles can be followed")
	}
	if target.UserID == userID {
		return dErrors.New(dErrors.CodeValidation, "cannot follow your own profile")
	}
	if _, err := s.EnsureUser(ctx, userID, ""); err != nil {
		return err
	}
	if err := s.users.Follow(ctx, userID, profileID); err != nil {
		return s.translateUserErr(err, "failed to follow profile")
	}
	s.logAudit(ctx, string(audit.EventProfileFollowed),
		"user_id", userID.String(),
		"profile_id", profileID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementFollow("follow")
	}
	return nil
}

func (s *Service) Unfollow(ctx context.Context, userID id.UserID, profileID id.ProfileID) error {
	if _, err := s.findProfile(ctx, profileID); err != nil {
		return err
	}
	if err := s.users.Unfollow(ctx, userID, profileID); err != nil {
		return s.translateUserErr(err, "failed to unfollow profile")
	}
	s.logAudit(ctx, string(audit.EventProfileUnfollowed),
		"user_id", userID.String(),
		"profile_id", profileID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementFollow("unfollow")
	}
	return nil
}

// AddDeviceToken registers a push token for the caller. Re-registering is a no-op.
func (s *Service) AddDeviceToken(ctx context.Context, userID id.UserID, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "token is required")
	}
	if len(token) > maxDeviceTokenLength || strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "token is malformed")
	}
	if _, err := s.EnsureUser(ctx, userID, ""); err != nil {
		return nil, err
	}
	user, err := s.users.AddDeviceToken(ctx, userID, token)
	if err != nil {
		return nil, s.translateUserErr(err, "failed to add device token")
	}
	s.logAudit(ctx, string(audit.EventDeviceTokenAdded), "user_id", userID.String())
	if s.metrics != nil {
		s.metrics.IncrementDeviceToken()
	}
	return user, nil
}

func (s *Service) isActiveAdmin(ctx context.Context, userID id.UserID) (bool, error) {
	profiles, err := s.profiles.ListByUser(ctx, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	for _, p := range profiles {
		if p.Role == models.RoleAdmin && p.Active {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) findUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.translateUserErr(err, "failed to load user")
	}
	return user, nil
}

func (s *Service) findProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return profile, nil
}

func (s *Service) translateUserErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	userID, _ := id.ParseUserID(attrs.String(attributes, "user_id"))
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.String(attributes, "profile_id"),
		Action:    event,
		ActorID:   attrs.String(attributes, "actor_id"),
		RequestID: requestcontext.RequestID(ctx),
	})
}
