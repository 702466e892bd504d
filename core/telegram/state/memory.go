package state

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	values map[int64]string
	closed bool
}

// NewMemoryStore constructs an in-memory Store for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{values: make(map[int64]string)}
}

// Get returns the value stored for a user.
func (m *memoryStore) Get(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrStoreClosed
	}
	v, ok := m.values[userID]
	return v, ok, nil
}

// Set replaces the value stored for a user.
func (m *memoryStore) Set(_ context.Context, userID int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.values[userID] = value
	return nil
}

// Ping reports whether the store is still open.
func (m *memoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close drops all sessions.
func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = nil
	return nil
}
