// Package store persists small pieces of application state: the last
// known location, the IDs of scheduled notifications and computed prayer
// windows. Backends are interchangeable behind Store.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("store: key not found")

// Store is a byte-oriented key-value store with optional expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
