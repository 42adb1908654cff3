package persist

import (
	"context"
	"sync"

	"pkt.systems/tabkeeper/schema"
)

// MemoryStore keeps the session collection in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions []schema.Session
	saves    int
}

// NewMemoryStore constructs a memory store seeded with sessions.
func NewMemoryStore(seed ...schema.Session) *MemoryStore {
	return &MemoryStore{sessions: cloneAll(seed)}
}

// Load returns a copy of the stored sessions.
func (m *MemoryStore) Load(ctx context.Context) ([]schema.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.sessions), nil
}

// Save replaces the stored sessions.
func (m *MemoryStore) Save(ctx context.Context, sessions []schema.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = cloneAll(sessions)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneAll(sessions []schema.Session) []schema.Session {
	out := make([]schema.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Clone())
	}
	return out
}
