package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/hackledger/ports"
)

// MemoryRevocationStore is an in-memory implementation of ports.RevocationStore
type MemoryRevocationStore struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryRevocationStore creates a new in-memory revocation list
func NewMemoryRevocationStore() ports.RevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// RevokeSession marks a session id as revoked for expiry
func (s *MemoryRevocationStore) RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Entries past their expiry can no longer match a valid token
	for id, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, id)
		}
	}

	until := now.Add(expiry)
	if current, exists := s.revoked[sessionID]; !exists || until.After(current) {
		s.revoked[sessionID] = until
	}
	return nil
}

// IsSessionRevoked checks if a session id is revoked
func (s *MemoryRevocationStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, exists := s.revoked[sessionID]
	if !exists {
		return false, nil
	}
	return !s.now().After(until), nil
}
