package ports

import (
	"context"
	"time"
)

// StoredResponse is a response captured for an idempotency key
type StoredResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers responses to requests carrying an
// Idempotency-Key header. A key is reserved before the request runs so two
// concurrent requests with the same key cannot both execute.
type IdempotencyStore interface {
	// Get returns the stored response, or nil when the key is unknown or
	// only reserved
	Get(ctx context.Context, key string) (*StoredResponse, error)

	// Reserve claims key for ttl. It reports false when the key already
	// holds a reservation or a response.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Put stores a response for ttl, replacing the reservation
	Put(ctx context.Context, key string, response *StoredResponse, ttl time.Duration) error

	// Release drops a reservation that never got a response. A stored
	// response is left alone.
	Release(ctx context.Context, key string) error
}
