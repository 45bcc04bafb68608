package auth

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired sessions. Verification already expires sessions lazily,
// so the sweeper only bounds storage growth.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper running every interval.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single cleanup pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := time.Now()
	removed, err := s.service.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("expired session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed",
			slog.Int64("removed", removed),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
