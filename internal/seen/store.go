// Package seen implements the bounded, time-windowed record of post
// identifiers the watcher has already processed. It suppresses duplicate
// notifications across poll cycles and, via Snapshot/Restore, across
// process restarts within the retention window.
package seen

import (
	"sync"
	"time"
)

// Store maps post identifiers to the time they were first accepted for
// processing. All methods are safe for concurrent use; the in-memory map
// is authoritative, persistence is the caller's concern.
type Store struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func New() *Store {
	return &Store{entries: make(map[string]time.Time)}
}

// Has reports whether an unevicted entry for id exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Record inserts or refreshes the entry for id. Idempotent for the same
// id; last timestamp wins.
func (s *Store) Record(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = t
}

// Forget removes the entry for id so the post becomes eligible for
// processing again on a later cycle.
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Evict removes every entry whose age exceeds retention and returns the
// number removed. Entries with age <= retention are kept.
func (s *Store) Evict(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, t := range s.entries {
		if now.Sub(t) > retention {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of all entries for persistence.
func (s *Store) Snapshot() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.entries))
	for id, t := range s.entries {
		out[id] = t
	}
	return out
}

// Restore replaces the store contents with the given entries.
func (s *Store) Restore(entries map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]time.Time, len(entries))
	for id, t := range entries {
		s.entries[id] = t
	}
}
