package store

import (
	"sync"

	"github.com/parlorlabs/arcade/internal/activity"
)

// Store holds authoritative session state. The store is not a lock: the
// coordinator serializes access per session and is the only legal writer.
type Store interface {
	Load(id string) (*activity.Session, bool)
	Save(s *activity.Session)
	Delete(id string)
	List(filter func(*activity.Session) bool) []*activity.Session
}

// MemoryStore is the process-local map implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*activity.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*activity.Session)}
}

func (m *MemoryStore) Load(id string) (*activity.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Save(s *activity.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *MemoryStore) List(filter func(*activity.Session) bool) []*activity.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*activity.Session
	for _, s := range m.sessions {
		if filter == nil || filter(s) {
			out = append(out, s)
		}
	}
	return out
}
