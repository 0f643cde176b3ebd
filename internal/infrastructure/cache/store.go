// Package cache keeps API responses so that retried requests carrying the
// same idempotency key are answered without running the handler again.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrKeyInFlight is returned by Get while the first request holding a key is still running
var ErrKeyInFlight = errors.New("idempotency key is still being processed")

// StoredResponse is a completed response kept for replay
type StoredResponse struct {
	// Fingerprint identifies the request that produced the response
	Fingerprint string `json:"fingerprint"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// ResponseStore records responses by idempotency key
type ResponseStore interface {
	// Reserve claims key for a request in flight.
	// Returns false when the key is already reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Get returns the completed response for key, or nil when the key is unknown.
	// A reserved key that has no response yet yields ErrKeyInFlight.
	Get(ctx context.Context, key string) (*StoredResponse, error)

	// Complete stores the response of a reserved key
	Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error

	// Release drops a reservation so the request can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// NewResponseStore returns a Redis-backed store when a client is given and
// an in-memory store otherwise.
func NewResponseStore(client redis.UniversalClient, logger *zap.Logger) ResponseStore {
	if client == nil {
		logger.Info("Using in-memory idempotency store")
		return NewInMemoryResponseStore()
	}
	logger.Info("Using Redis idempotency store")
	return NewRedisResponseStore(client, "")
}
