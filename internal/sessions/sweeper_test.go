package sessions

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweeperRemovesIdleSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.GetOrCreate(ctx, "stale")
	store.GetOrCreate(ctx, "fresh")

	sweeper := NewSweeper(store, time.Hour, time.Minute, nil)
	sweeper.nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }

	removed := sweeper.SweepOnce(ctx)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session should be gone, got %v", err)
	}
}

func TestSweeperKeepsActiveSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.GetOrCreate(ctx, "active")

	sweeper := NewSweeper(store, time.Hour, time.Minute, nil)

	if removed := sweeper.SweepOnce(ctx); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := store.Get(ctx, "active"); err != nil {
		t.Errorf("active session should remain: %v", err)
	}
}

func TestSweeperDisabled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.GetOrCreate(ctx, "s1")

	sweeper := NewSweeper(store, 0, time.Minute, nil)
	sweeper.nowFunc = func() time.Time { return time.Now().Add(24 * time.Hour) }

	if removed := sweeper.SweepOnce(ctx); removed != 0 {
		t.Fatalf("disabled sweeper removed %d sessions", removed)
	}
}
