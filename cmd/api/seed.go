package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chessmate/internal/auth"
)

// seedLocalUsers fills the in-memory store with demo players for local development.
func seedLocalUsers(ctx context.Context, repo *auth.InMemoryRepository, logger *slog.Logger) {
	now := time.Now().UTC()
	age := func(a int) *int { return &a }
	country := func(c string) *string { return &c }

	demo := []struct {
		user  auth.User
		stats auth.Stats
	}{
		{
			user: auth.User{
				Email:           "magnus@example.com",
				Name:            "Magnus Demo",
				Age:             age(34),
				Country:         country("Norway"),
				ProfileComplete: true,
			},
			stats: auth.Stats{TotalGames: 42, Wins: 30, Losses: 4, Draws: 8},
		},
		{
			user: auth.User{
				Email:           "judit@example.com",
				Name:            "Judit Demo",
				Age:             age(48),
				Country:         country("Hungary"),
				ProfileComplete: true,
			},
			stats: auth.Stats{TotalGames: 17, Wins: 11, Losses: 3, Draws: 3},
		},
		{
			user: auth.User{
				Email: "newcomer@example.com",
				Name:  "Newcomer",
			},
		},
	}

	for i, d := range demo {
		d.user.ID = uuid.New()
		d.user.CreatedAt = now.Add(-time.Duration(len(demo)-i) * 24 * time.Hour)
		if err := repo.CreateUser(ctx, d.user); err != nil {
			logger.Warn("seed user", "email", d.user.Email, "error", err)
			continue
		}
		if d.stats != (auth.Stats{}) {
			repo.RecordGame(d.user.Email, d.stats)
		}
	}
	logger.Info("seeded demo users", "count", len(demo))
}
