// Package redis stores revoked refresh token IDs in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "identity:revoked:"

// RevocationStore implements identity.RevocationStore.
// Key format: identity:revoked:<jti>, expiring with the token.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore creates a store wrapping client.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks tokenID as revoked for ttl. SET NX makes the check and the
// write one step, so it reports true only for the first caller.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke %s: %w", tokenID, err)
	}
	return ok, nil
}
