package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "crm:idempotency:"
	pendingMarker    = "pending"
)

// RedisResponseStore implements ResponseStore over Redis so replicas share
// idempotency state
type RedisResponseStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisResponseStore creates a store over an existing client. The client
// is owned by the caller and is not closed by Close.
func NewRedisResponseStore(client redis.UniversalClient, keyPrefix string) *RedisResponseStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisResponseStore{client: client, keyPrefix: keyPrefix}
}

// Reserve uses SETNX so only one request wins a key
func (s *RedisResponseStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Get loads a completed response
func (s *RedisResponseStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if raw == pendingMarker {
		return nil, ErrKeyInFlight
	}

	var resp StoredResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &resp, nil
}

// Complete overwrites the reservation with the response
func (s *RedisResponseStore) Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// Release deletes the key
func (s *RedisResponseStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisResponseStore) Close() error {
	return nil
}

var _ ResponseStore = (*RedisResponseStore)(nil)
