package auth

import (
	"context"
	"time"
)

// UserStore defines persistence for user profiles keyed by email.
type UserStore interface {
	// FindUserByEmail returns nil, nil when no user exists.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// CreateUser inserts a user and returns ErrUserExists if the email is taken.
	CreateUser(ctx context.Context, user User) error
	// UpdateUserProfile atomically applies the update and returns the result,
	// or nil, nil when no user exists.
	UpdateUserProfile(ctx context.Context, email string, update ProfileUpdate) (*User, error)
	ListUsers(ctx context.Context, limit int) ([]User, error)
}

// SessionStore defines persistence for sessions keyed by token.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	// FindSession returns nil, nil when no session exists.
	FindSession(ctx context.Context, token string) (*Session, error)
	// DeleteSession is a no-op when the session does not exist.
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Exchanger redeems an exchange id against the external identity provider.
type Exchanger interface {
	Exchange(ctx context.Context, exchangeID string) (*Identity, error)
}
