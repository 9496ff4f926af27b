package admin

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations is a jti denylist with per-entry TTL. Entries outlive the
// token they revoke by construction: the TTL is the token's remaining
// validity, after which the token is dead on its own.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb, prefix: "storegate:revoked:"}
}

func (s *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, s.prefix+jti, 1, ttl).Err()
}

func (s *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
