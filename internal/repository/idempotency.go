package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "ticketing:idem:"
	defaultIdempotencyTTL = 24 * time.Hour
)

// IdempotencyStore remembers client request keys in Redis so a retried
// booking request is not executed twice.  A nil client disables the
// check: every key is treated as new.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore returns a store whose keys live for ttl (24h when
// ttl <= 0).
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim records key and reports whether this is the first time it was
// seen.  Keys are scoped by scope, normally the user id, so that two users
// cannot collide on the same client-generated key.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	if s == nil || s.client == nil || key == "" {
		return true, nil
	}
	return s.client.SetNX(ctx, idempotencyKeyPrefix+scope+":"+key, 1, s.ttl).Result()
}

// Release forgets key so that a request that failed before doing any work
// can be retried with it.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if s == nil || s.client == nil || key == "" {
		return nil
	}
	return s.client.Del(ctx, idempotencyKeyPrefix+scope+":"+key).Err()
}
