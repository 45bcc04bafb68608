package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestSweeperRemovesExpiredSessions(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	_ = repo.CreateSession(ctx, Session{Token: "old", UserEmail: "a@x.com", ExpiresAt: time.Now().Add(-time.Hour)})
	_ = repo.CreateSession(ctx, Session{Token: "new", UserEmail: "a@x.com", ExpiresAt: time.Now().Add(time.Hour)})

	svc := NewService(repo, repo, annExchange())
	sweeper := NewSweeper(svc, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sweeper.SweepOnce(ctx)

	if session, _ := repo.FindSession(ctx, "old"); session != nil {
		t.Fatal("expected expired session to be swept")
	}
	if session, _ := repo.FindSession(ctx, "new"); session == nil {
		t.Fatal("expected live session to survive the sweep")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, repo, annExchange())
	sweeper := NewSweeper(svc, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after cancellation")
	}
}
