package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultUserListLimit = 1000
)

// Metrics records authentication outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveOutcome(operation, kind string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOutcome(string, string) {}

// Option configures a Service.
type Option func(*Service)

// WithSessionTTL overrides the session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithUserListLimit overrides the maximum number of users returned by ListUsers.
func WithUserListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.userListLimit = limit
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the outcome recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service manages the session lifecycle: exchange, verification, profile updates and logout.
// It keeps no state between calls; every verification re-reads the stores.
type Service struct {
	users         UserStore
	sessions      SessionStore
	exchange      Exchanger
	sessionTTL    time.Duration
	userListLimit int
	now           func() time.Time
	logger        *slog.Logger
	metrics       Metrics
}

// NewService creates a new auth Service.
func NewService(users UserStore, sessions SessionStore, exchange Exchanger, opts ...Option) *Service {
	s := &Service{
		users:         users,
		sessions:      sessions,
		exchange:      exchange,
		sessionTTL:    defaultSessionTTL,
		userListLimit: defaultUserListLimit,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:       noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// CreateSession redeems the exchange id, registers the user on first login and stores a new session.
func (s *Service) CreateSession(ctx context.Context, exchangeID string) (result *SessionResult, err error) {
	defer func() { s.metrics.ObserveOutcome("create_session", Kind(err)) }()

	exchangeID = strings.TrimSpace(exchangeID)
	if exchangeID == "" {
		return nil, ErrMissingCredential
	}

	identity, err := s.exchange.Exchange(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.ensureUser(ctx, identity, now); err != nil {
		return nil, err
	}

	session := Session{
		Token:     identity.SessionToken,
		UserEmail: identity.Email,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrInternal, err)
	}

	return &SessionResult{
		ID:           identity.ID,
		Email:        identity.Email,
		Name:         identity.Name,
		Picture:      identity.Picture,
		SessionToken: identity.SessionToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// ensureUser creates the user on first login. Existing users are left untouched.
func (s *Service) ensureUser(ctx context.Context, identity *Identity, now time.Time) error {
	existing, err := s.users.FindUserByEmail(ctx, identity.Email)
	if err != nil {
		return fmt.Errorf("%w: find user: %w", ErrInternal, err)
	}
	if existing != nil {
		return nil
	}

	user := User{
		ID:        uuid.New(),
		Email:     identity.Email,
		Name:      identity.Name,
		Picture:   identity.Picture,
		CreatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// A concurrent login for the same email won the insert.
		if errors.Is(err, ErrUserExists) {
			return nil
		}
		return fmt.Errorf("%w: create user: %w", ErrInternal, err)
	}
	s.logger.Info("user registered", "email", user.Email)
	return nil
}

func validateIdentity(identity *Identity) error {
	if identity == nil {
		return malformed("empty identity")
	}
	var missing []string
	if strings.TrimSpace(identity.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(identity.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(identity.SessionToken) == "" {
		missing = append(missing, "session_token")
	}
	if len(missing) > 0 {
		return malformed("missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// Verify resolves the token to the owning user's profile.
func (s *Service) Verify(ctx context.Context, token string) (profile *Profile, err error) {
	defer func() { s.metrics.ObserveOutcome("verify", Kind(err)) }()

	session, err := s.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, session.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %w", ErrInternal, err)
	}
	if user == nil {
		s.logger.Warn("session references missing user", "email", session.UserEmail)
		return nil, ErrUserNotFound
	}

	p := user.Profile()
	return &p, nil
}

// UpdateProfile applies a partial profile update for the token's owner.
func (s *Service) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (profile *Profile, err error) {
	defer func() { s.metrics.ObserveOutcome("update_profile", Kind(err)) }()

	session, err := s.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}

	var user *User
	if update.Empty() {
		user, err = s.users.FindUserByEmail(ctx, session.UserEmail)
	} else {
		user, err = s.users.UpdateUserProfile(ctx, session.UserEmail, update)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update user: %w", ErrInternal, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	p := user.Profile()
	return &p, nil
}

// resolveSession looks up a live session, deleting it when it has expired.
func (s *Service) resolveSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	session, err := s.sessions.FindSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %w", ErrInternal, err)
	}
	if session == nil {
		return nil, ErrInvalidCredential
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Logout deletes the session for token. It never fails from the caller's perspective.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		s.metrics.ObserveOutcome("logout", Kind(nil))
		return
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		s.logger.Warn("logout: delete session failed", "error", err)
	}
	s.metrics.ObserveOutcome("logout", Kind(nil))
}

// ListUsers returns up to the configured limit of users in store order.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.users.ListUsers(ctx, s.userListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrInternal, err)
	}
	return users, nil
}

// CleanupExpiredSessions removes all expired sessions from the store.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
}
