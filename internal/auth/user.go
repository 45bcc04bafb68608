package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents a player profile keyed by email.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	Picture         string
	Age             *int
	Country         *string
	ProfileComplete bool
	CreatedAt       time.Time
	Stats           Stats
}

// Stats holds cumulative game counters. They are written by the game recorder, never by this package.
type Stats struct {
	TotalGames int
	Wins       int
	Losses     int
	Draws      int
}

// Session binds an opaque upstream token to a user email until ExpiresAt.
type Session struct {
	Token     string
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is logically dead at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt.UTC().Before(now.UTC())
}

// Identity is the verified identity returned by the external exchange.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Picture      string
	SessionToken string
}

// SessionResult is returned to the caller after a successful exchange.
type SessionResult struct {
	ID           string
	Email        string
	Name         string
	Picture      string
	SessionToken string
	ExpiresAt    time.Time
}

// Profile is the public view of a user surfaced to authenticated callers.
type Profile struct {
	Email           string
	Name            string
	Picture         string
	Age             *int
	Country         *string
	ProfileComplete bool
	Stats           Stats
}

// ProfileUpdate carries the optional fields of a partial profile update.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Age     *int
	Country *string
}

// Empty reports whether the update carries no fields.
func (u ProfileUpdate) Empty() bool {
	return u.Age == nil && u.Country == nil
}

// Apply merges the update into the user and recomputes profile completeness.
// Completeness is sticky: once set it is never cleared here.
func (u ProfileUpdate) Apply(user *User) {
	if u.Age != nil {
		age := *u.Age
		user.Age = &age
	}
	if u.Country != nil {
		country := *u.Country
		user.Country = &country
	}
	if user.Age != nil && user.Country != nil {
		user.ProfileComplete = true
	}
}

// Profile returns the public profile of the user.
func (u User) Profile() Profile {
	return Profile{
		Email:           u.Email,
		Name:            u.Name,
		Picture:         u.Picture,
		Age:             u.Age,
		Country:         u.Country,
		ProfileComplete: u.ProfileComplete,
		Stats:           u.Stats,
	}
}
