package cache

import (
	"context"
	"time"
)

// EntryStatus mirrors the last known remote job state for a cached
// fingerprint.
type EntryStatus string

// Entry statuses.
const (
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// Entry maps a request fingerprint to a previously created remote job.
type Entry struct {
	WebsetID    string      `json:"webset_id"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsedAt  time.Time   `json:"last_used_at"`
	Status      EntryStatus `json:"status"`
}

// Store holds at most one Entry per fingerprint. Implementations are
// injected into the reuse decider and the poll engine; reuse is an
// optimization, so callers treat store errors as cache misses.
type Store interface {
	// Get returns the entry for a fingerprint, or false. Expired
	// entries are treated as absent.
	Get(ctx context.Context, fingerprint string) (Entry, bool, error)
	// Put inserts or replaces the entry for a fingerprint.
	Put(ctx context.Context, entry Entry) error
	// Touch refreshes the entry's last-used time.
	Touch(ctx context.Context, fingerprint string) error
	// UpdateStatus records a remote status transition on the entry.
	UpdateStatus(ctx context.Context, fingerprint string, status EntryStatus) error
	// Remove evicts the entry for a fingerprint.
	Remove(ctx context.Context, fingerprint string) error
	// Len returns the current entry count.
	Len(ctx context.Context) (int, error)
}
