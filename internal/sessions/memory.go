package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morrisonlaw/clara/pkg/models"
)

// DefaultMaxMessagesPerSession bounds the turns kept per session so a
// very long call cannot grow memory without bound.
const DefaultMaxMessagesPerSession = 1000

// MemoryStore is the in-memory Store implementation. It is the default
// for local runs and tests; all reads and writes go through clones so
// callers can never mutate stored state through a handed-out pointer.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	messages    map[string][]*models.Message
	maxMessages int
}

// NewMemoryStore creates an empty in-memory session store with the
// default history bound.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithLimit(DefaultMaxMessagesPerSession)
}

// NewMemoryStoreWithLimit creates an in-memory store keeping at most
// maxMessages turns per session; <= 0 keeps every turn.
func NewMemoryStoreWithLimit(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    map[string]*models.Session{},
		messages:    map[string][]*models.Message{},
		maxMessages: maxMessages,
	}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if session, ok := m.sessions[id]; ok {
			return session.Clone(), nil
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	session := &models.Session{
		ID:         id,
		CallerInfo: models.DefaultCallerInfo(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.sessions[id] = session
	return session.Clone(), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[session.ID]
	if !ok {
		return ErrSessionNotFound
	}
	clone := session.Clone()
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	m.sessions[clone.ID] = clone
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(out) {
		return []*models.Session{}, nil
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return out[start:end], nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	clone := models.CloneMessage(msg)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	clone.SessionID = sessionID
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	m.messages[sessionID] = append(m.messages[sessionID], clone)

	// Storage bound, not conversation semantics: within the bound a
	// history is never reordered or truncated mid-session; past it the
	// oldest turns age out so one endless call cannot exhaust memory.
	if m.maxMessages > 0 && len(m.messages[sessionID]) > m.maxMessages {
		excess := len(m.messages[sessionID]) - m.maxMessages
		m.messages[sessionID] = m.messages[sessionID][excess:]
	}
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := m.messages[sessionID]
	if len(messages) == 0 {
		return []*models.Message{}, nil
	}
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, models.CloneMessage(msg))
	}
	return out, nil
}
