package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "trl:token:"

// RedisBlacklist is a Redis-backed revocation list for deployments where
// multiple instances share revocation state. Keys are written without a TTL:
// blacklist entries are never pruned, matching the retention semantics of
// the Postgres list.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, at time.Time) error {
	if token == "" {
		return nil
	}
	return b.client.Set(ctx, revokedTokenKeyPrefix+token, at.UTC().Format(time.RFC3339), 0).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := b.client.Get(ctx, revokedTokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
