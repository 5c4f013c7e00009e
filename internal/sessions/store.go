// Package sessions owns per-caller conversation state. The Store is
// the sole owner of Session lifetime: sessions are created lazily on
// first contact and their histories are append-only.
package sessions

import (
	"context"
	"errors"

	"github.com/morrisonlaw/clara/pkg/models"
)

// ErrSessionNotFound is returned by lookups for unknown session IDs.
// GetOrCreate never returns it; absence implies creation.
var ErrSessionNotFound = errors.New("session not found")

// Store is the interface for session persistence.
type Store interface {
	// GetOrCreate returns the session for the given ID, creating it
	// with default state on first contact. An empty ID gets a
	// generated one.
	GetOrCreate(ctx context.Context, id string) (*models.Session, error)

	// Get returns an existing session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// Update persists modified session state (caller info, audit
	// trail). Creation time is preserved.
	Update(ctx context.Context, session *models.Session) error

	// Delete removes a session and its history.
	Delete(ctx context.Context, id string) error

	// List returns sessions, most recently updated first.
	List(ctx context.Context, opts ListOptions) ([]*models.Session, error)

	// AppendMessage appends one turn to the session's history.
	// Histories are never reordered or truncated mid-session.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error

	// GetHistory returns the most recent limit turns in chronological
	// order. limit <= 0 returns the full history.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}
