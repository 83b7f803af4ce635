package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/hackledger/ports"
	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore is a Redis implementation of ports.RevocationStore,
// shared by every instance pointed at the same server
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a new Redis revocation list
func NewRedisRevocationStore(client *redis.Client) ports.RevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "hackledger:revoked:",
	}
}

// RevokeSession marks a session id as revoked in Redis
func (s *RedisRevocationStore) RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+sessionID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked checks if a session id is revoked in Redis
func (s *RedisRevocationStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return val > 0, nil
}
