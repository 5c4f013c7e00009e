package sessions

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes sessions that have been idle longer than a TTL. It
// is the pluggable eviction point: the stores themselves never expire
// anything, so running without a sweeper keeps sessions for the
// process lifetime.
type Sweeper struct {
	store    Store
	idleTTL  time.Duration
	interval time.Duration
	logger   *slog.Logger

	nowFunc func() time.Time
}

// NewSweeper creates a sweeper over the given store. idleTTL <= 0
// disables sweeping; interval <= 0 defaults to 5 minutes.
func NewSweeper(store Store, idleTTL, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		idleTTL:  idleTTL,
		interval: interval,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Run sweeps on the configured interval until the context is
// cancelled. It is a no-op when the idle TTL is disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.idleTTL <= 0 {
		return
	}
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

// SweepOnce deletes every session idle past the TTL and returns the
// number removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.nowFunc().Add(-s.idleTTL)

	all, err := s.store.List(ctx, ListOptions{})
	if err != nil {
		s.logger.Warn("session sweep: list failed", "error", err)
		return 0
	}

	removed := 0
	for _, session := range all {
		if session.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("session sweep: delete failed",
				"session_id", session.ID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("swept idle sessions", "removed", removed)
	}
	return removed
}
