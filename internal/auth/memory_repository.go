package auth

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository implements UserStore and SessionStore in process memory,
// ideal for local development or tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]User
	order    []string
	sessions map[string]Session
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:    make(map[string]User),
		sessions: make(map[string]Session),
	}
}

// FindUserByEmail returns a copy of the stored user.
func (r *InMemoryRepository) FindUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

// CreateUser stores a new user.
func (r *InMemoryRepository) CreateUser(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Email]; ok {
		return ErrUserExists
	}
	r.users[user.Email] = *cloneUser(user)
	r.order = append(r.order, user.Email)
	return nil
}

// UpdateUserProfile applies the update under the write lock.
func (r *InMemoryRepository) UpdateUserProfile(_ context.Context, email string, update ProfileUpdate) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	update.Apply(&user)
	r.users[email] = user
	return cloneUser(user), nil
}

// ListUsers returns users in insertion order.
func (r *InMemoryRepository) ListUsers(_ context.Context, limit int) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, min(len(r.order), limit))
	for _, email := range r.order {
		if len(out) >= limit {
			break
		}
		if user, ok := r.users[email]; ok {
			out = append(out, *cloneUser(user))
		}
	}
	return out, nil
}

// RecordGame increments the counters of a stored user. It stands in for the game recorder in tests and local seeding.
func (r *InMemoryRepository) RecordGame(email string, stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return
	}
	user.Stats.TotalGames += stats.TotalGames
	user.Stats.Wins += stats.Wins
	user.Stats.Losses += stats.Losses
	user.Stats.Draws += stats.Draws
	r.users[email] = user
}

// CreateSession stores a session, replacing any session with the same token.
func (r *InMemoryRepository) CreateSession(_ context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.Token] = session
	return nil
}

// FindSession returns the session for token.
func (r *InMemoryRepository) FindSession(_ context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// DeleteSession removes the session for token.
func (r *InMemoryRepository) DeleteSession(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

// DeleteExpiredSessions removes every session expired at now.
func (r *InMemoryRepository) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for token, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(context.Context) error {
	return nil
}

func cloneUser(u User) *User {
	out := u
	if u.Age != nil {
		age := *u.Age
		out.Age = &age
	}
	if u.Country != nil {
		country := *u.Country
		out.Country = &country
	}
	return &out
}
