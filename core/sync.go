package core

import (
	"sync"
	"time"
)

// SkippedEntity records an entity a sync run could not mirror
type SkippedEntity struct {
	EntityType EntityType `json:"entity_type"`
	ExternalID string     `json:"external_id"`
	Reason     string     `json:"reason"`
}

// SyncReport summarises one reconciliation run. It is safe for concurrent use
// while the run is in progress.
type SyncReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Hackathons int             `json:"hackathons"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Unchanged  int             `json:"unchanged"`
	Skipped    []SkippedEntity `json:"skipped,omitempty"`
	Cancelled  bool            `json:"cancelled"`

	mu sync.Mutex
}

// Writes returns the number of records the run created or modified
func (r *SyncReport) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Created + r.Updated
}

// Record counts the outcome of one upsert
func (r *SyncReport) Record(res WriteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch res {
	case WriteCreated:
		r.Created++
	case WriteUpdated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

// Skip records an entity that was not mirrored
func (r *SyncReport) Skip(entity EntityType, externalID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, SkippedEntity{
		EntityType: entity,
		ExternalID: externalID,
		Reason:     err.Error(),
	})
}

// AddHackathon counts a hackathon whose graph was visited
func (r *SyncReport) AddHackathon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Hackathons++
}

// SkippedCount returns the number of skipped entities
func (r *SyncReport) SkippedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Skipped)
}

// MarkCancelled flags the run as aborted before it visited every hackathon
func (r *SyncReport) MarkCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancelled = true
}
