package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when acquiring a session lock times out.
var ErrLockTimeout = errors.New("sessions: lock acquisition timeout")

// sessionLock serializes writers for one session ID. The one-slot
// semaphore holds the lock; refs counts goroutines holding a reference
// so the manager can drop the entry when the last one departs.
type sessionLock struct {
	sem  chan struct{}
	refs int
}

// LockManager serializes control loop executions per session. Two
// inbound messages for the same session must never interleave their
// turn appends; different sessions proceed independently.
//
// LockManager is safe for concurrent use.
type LockManager struct {
	mu         sync.RWMutex
	locks      map[string]*sessionLock
	defaultTTL time.Duration
}

// NewLockManager creates a lock manager. defaultTTL bounds how long an
// Acquire waits when no explicit timeout is given; <= 0 means 30s.
func NewLockManager(defaultTTL time.Duration) *LockManager {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &LockManager{
		locks:      make(map[string]*sessionLock),
		defaultTTL: defaultTTL,
	}
}

// Acquire takes the write lock for the session, waiting up to timeout
// (or the default when timeout <= 0). The returned release function
// must be called when the turn finishes; extra calls are no-ops.
func (m *LockManager) Acquire(ctx context.Context, sessionID string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = m.defaultTTL
	}

	lock := m.ref(sessionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
		return m.releaser(sessionID, lock), nil
	case <-timer.C:
		m.unref(sessionID, lock)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		m.unref(sessionID, lock)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock without waiting; reports false if held.
func (m *LockManager) TryAcquire(sessionID string) (func(), bool) {
	lock := m.ref(sessionID)

	select {
	case lock.sem <- struct{}{}:
		return m.releaser(sessionID, lock), true
	default:
		m.unref(sessionID, lock)
		return nil, false
	}
}

// IsLocked reports whether the session is currently locked.
func (m *LockManager) IsLocked(sessionID string) bool {
	m.mu.RLock()
	lock, ok := m.locks[sessionID]
	m.mu.RUnlock()
	return ok && len(lock.sem) == 1
}

func (m *LockManager) releaser(sessionID string, lock *sessionLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.sem
			m.unref(sessionID, lock)
		})
	}
}

// ref returns the session's lock entry, creating it on first use.
// Every ref is paired with one unref; waiters on a shared entry all
// block on the same semaphore, so mutual exclusion cannot be split
// across two entries for one ID.
func (m *LockManager) ref(sessionID string) *sessionLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{sem: make(chan struct{}, 1)}
		m.locks[sessionID] = lock
	}
	lock.refs++
	return lock
}

// unref drops one reference and deletes the entry when nothing holds
// or waits on it, so the map does not grow with every session seen.
func (m *LockManager) unref(sessionID string, lock *sessionLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, sessionID)
	}
}
