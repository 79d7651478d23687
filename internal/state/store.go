// Package state keeps the relay's only retained data: the latest known
// payload reported by each lampadaire. There is no history and nothing
// survives a restart.
package state

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is one producer's last-known payload and when the relay received it.
type Entry struct {
	Fields     map[string]any `json:"lampadaire"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Store is a mutex-guarded map of producer id to last-known entry.
type Store struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	lamps map[string]Entry
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock: clock,
		lamps: make(map[string]Entry),
	}
}

// Put records the latest payload for id, replacing any previous one.
// The fields map is copied so later mutation by the caller cannot leak in.
func (s *Store) Put(id string, fields map[string]any) {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lamps[id] = Entry{Fields: copied, ReceivedAt: s.clock.Now()}
}

// Get returns the last-known entry for id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.lamps[id]
	return entry, ok
}

// Snapshot returns a copy of all entries, keyed by producer id.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]Entry, len(s.lamps))
	for id, entry := range s.lamps {
		snapshot[id] = entry
	}
	return snapshot
}

// Len reports how many producers have a recorded state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lamps)
}
