package session

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store. The agent falls back to it when no
// Redis is configured.
type MemoryStore struct {
	mu sync.RWMutex
	s  *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.s = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.s = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Has(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s != nil
}
