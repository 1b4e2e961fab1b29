package cache

import (
	"context"
	"sync"
	"time"
)

// Memory store defaults.
const (
	DefaultMaxEntries = 100
	DefaultTTL        = 6 * time.Hour
)

// MemoryStore is a bounded in-process fingerprint cache. All mutation
// happens under one mutex, preserving the one-entry-per-fingerprint
// invariant across concurrent submit and reuse calls.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]Entry
	maxEntries int
	ttl        time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the entry for a fingerprint. TTL-expired entries are
// evicted and reported as absent.
func (s *MemoryStore) Get(_ context.Context, fingerprint string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return Entry{}, false, nil
	}

	if s.expired(entry) {
		delete(s.entries, fingerprint)
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Put inserts or replaces the entry for a fingerprint, evicting as
// needed to stay within the configured capacity.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Fingerprint]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}

	s.entries[entry.Fingerprint] = entry
	return nil
}

// Touch refreshes the entry's last-used time. Missing entries are a
// no-op.
func (s *MemoryStore) Touch(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[fingerprint]; ok {
		entry.LastUsedAt = s.now()
		s.entries[fingerprint] = entry
	}
	return nil
}

// UpdateStatus records a remote status transition on the entry.
func (s *MemoryStore) UpdateStatus(_ context.Context, fingerprint string, status EntryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[fingerprint]; ok {
		entry.Status = status
		s.entries[fingerprint] = entry
	}
	return nil
}

// Remove evicts the entry for a fingerprint.
func (s *MemoryStore) Remove(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, fingerprint)
	return nil
}

// Len returns the current entry count.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}

// evictLocked frees room for one insert. TTL-expired entries go first;
// if none are expired, the single least-recently-used entry goes.
// Callers must hold the mutex.
func (s *MemoryStore) evictLocked() {
	removed := false
	for fp, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, fp)
			removed = true
		}
	}
	if removed {
		return
	}

	var lruKey string
	var lruAt time.Time
	for fp, entry := range s.entries {
		if lruKey == "" || entry.LastUsedAt.Before(lruAt) {
			lruKey = fp
			lruAt = entry.LastUsedAt
		}
	}
	if lruKey != "" {
		delete(s.entries, lruKey)
	}
}

func (s *MemoryStore) expired(entry Entry) bool {
	return s.now().Sub(entry.CreatedAt) > s.ttl
}
