package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrIdempotencyConflict indicates a request key was already processed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore records processed request keys in Redis with a retention
// window. Keys are namespaced per operation so the same client key may be
// reused across unrelated endpoints.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. TTL bounds how long a key blocks
// replays.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// CheckAndInsert claims the key for the given operation. It fails with
// ErrIdempotencyConflict when the key was already claimed.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, op string) error {
	if s == nil || s.client == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if op == "" {
		return errors.New("idempotency operation required")
	}
	ok, err := s.client.SetNX(ctx, redisKey(key, op), 1, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("idempotency: claim key: %w", err)
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release removes a claimed key, typically to roll back failed processing so
// the caller may retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key, op string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.client.Del(ctx, redisKey(key, op)).Err()
}

func redisKey(key, op string) string {
	return fmt.Sprintf("idem:%s:%s", op, key)
}
