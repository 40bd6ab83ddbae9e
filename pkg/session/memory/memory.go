package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/actioncodes/actionbot/pkg/session"
)

// MemoryStore is the default in-memory session store. A process restart
// silently drops in-flight conversations; that is accepted, users start a
// new flow with a fresh command.
//
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	// userID -> session
	sessions map[int64]*session.Session

	closed bool
}

var _ session.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*session.Session),
	}
}

// Create stores a session, overwriting any existing session for the user.
func (m *MemoryStore) Create(_ context.Context, sess *session.Session) error {
	if sess == nil {
		return fmt.Errorf("cannot create nil session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	m.sessions[sess.UserID] = sess.Clone()
	return nil
}

// Get retrieves the user's session, or nil if none exists.
func (m *MemoryStore) Get(_ context.Context, userID int64) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("session store is closed")
	}

	sess, exists := m.sessions[userID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return sess.Clone(), nil
}

// Update applies a mutation to the user's session if one exists.
func (m *MemoryStore) Update(_ context.Context, userID int64, mutate func(*session.Session)) error {
	if mutate == nil {
		return fmt.Errorf("cannot apply nil mutation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	sess, exists := m.sessions[userID]
	if !exists {
		return nil // No session to update is not an error
	}

	mutate(sess)
	return nil
}

// Destroy removes the user's session.
func (m *MemoryStore) Destroy(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	delete(m.sessions, userID)
	return nil
}

// Close shuts down the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryStore) HealthCheck(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	return nil
}
