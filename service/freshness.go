package service

import (
	"sync"
	"time"

	"github.com/layer-3/hackledger/core"
)

type freshnessKey struct {
	entity     core.EntityType
	externalID string
}

// FreshnessTracker remembers when a cached entity was last confirmed against
// the ledger without rewriting the cache record. It is shared by the sync and
// authorization services of one process.
type FreshnessTracker struct {
	mu       sync.RWMutex
	verified map[freshnessKey]time.Time
}

// NewFreshnessTracker creates an empty tracker
func NewFreshnessTracker() *FreshnessTracker {
	return &FreshnessTracker{verified: make(map[freshnessKey]time.Time)}
}

// MarkVerified records that the entity matched the ledger at at
func (f *FreshnessTracker) MarkVerified(entity core.EntityType, externalID string, at time.Time) {
	key := freshnessKey{entity: entity, externalID: externalID}
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.verified[key]; !ok || at.After(prev) {
		f.verified[key] = at
	}
}

// VerifiedAt returns the last confirmation time of the entity
func (f *FreshnessTracker) VerifiedAt(entity core.EntityType, externalID string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	at, ok := f.verified[freshnessKey{entity: entity, externalID: externalID}]
	return at, ok
}

// IsFresh reports whether the newer of syncedAt and the tracked confirmation
// lies within bound of now
func (f *FreshnessTracker) IsFresh(entity core.EntityType, externalID string, syncedAt, now time.Time, bound time.Duration) bool {
	latest := syncedAt
	if at, ok := f.VerifiedAt(entity, externalID); ok && at.After(latest) {
		latest = at
	}
	if latest.IsZero() {
		return false
	}
	return now.Sub(latest) <= bound
}
