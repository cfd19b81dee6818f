// Package session derives the per-session identifier, persists it in a
// cookie-like store with a sliding expiry, and makes the sampling decision
// for a page view.
package session

import (
	"sync"
	"time"
)

// Store is a cookie-equivalent key-value store with per-write expiry,
// scoped to one origin.
type Store interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(key string) (value string, ok bool)
	// Set writes key with a time-to-live. A later Set slides the expiry.
	Set(key, value string, ttl time.Duration) error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps values in process memory. It backs tests and embedded
// use where no persistence is wanted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// SetNowFunc overrides the time source, for expiry tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(e.expires) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}
