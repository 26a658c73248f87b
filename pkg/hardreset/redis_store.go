package hardreset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "opskit:hard-reset:"

// RedisStore persists tokens in Redis with a key TTL matching the token
// expiry. Use it when issuance and validation can land on different
// processes (e.g. token issued via HTTP, reset executed from a CI runner's
// CLI against the same cluster).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the Redis instance at addr.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewRedisStoreFromClient wraps an existing client (used by tests).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, token, tenantID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("redis token store: expiry %s is in the past", expiresAt)
	}
	// Value carries the tenant; expiry is delegated to the Redis key TTL so
	// expired tokens vanish without a sweeper.
	payload := fmt.Sprintf("%s|%d", tenantID, expiresAt.Unix())
	if err := s.client.Set(ctx, redisKeyPrefix+token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis token store: set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, time.Time, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("redis token store: get failed: %w", err)
	}

	// Tenant IDs never contain '|'.
	sep := strings.LastIndexByte(val, '|')
	if sep < 0 {
		return "", time.Time{}, false, fmt.Errorf("redis token store: corrupt entry")
	}
	unix, err := strconv.ParseInt(val[sep+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("redis token store: corrupt entry")
	}
	return val[:sep], time.Unix(unix, 0).UTC(), true, nil
}
