package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const registeredKeyPrefix = "nftform:registered:"

// RedisExistenceCache remembers emails known to be registered. Records are
// never deleted, so a positive entry cannot go stale; only positives are
// cached so a later registration is never hidden. Keys hold a SHA-256 of the
// email rather than the address itself.
type RedisExistenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisExistenceCache constructs the cache. A zero ttl keeps keys forever.
func NewRedisExistenceCache(client *redis.Client, ttl time.Duration) *RedisExistenceCache {
	return &RedisExistenceCache{client: client, ttl: ttl}
}

func (c *RedisExistenceCache) IsRegistered(ctx context.Context, email string) (bool, error) {
	_, err := c.client.Get(ctx, registeredKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read existence cache: %w", err)
	}
	return true, nil
}

func (c *RedisExistenceCache) MarkRegistered(ctx context.Context, email string) error {
	if err := c.client.Set(ctx, registeredKey(email), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("write existence cache: %w", err)
	}
	return nil
}

func registeredKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return registeredKeyPrefix + hex.EncodeToString(sum[:])
}
