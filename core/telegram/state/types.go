package state

import (
	"context"
	"errors"
)

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("state store closed")

// Store persists one state value per user. Values are opaque to the store.
type Store interface {
	// Get returns the stored value; found is false when the user has none.
	Get(ctx context.Context, userID int64) (value string, found bool, err error)
	// Set stores value for the user, replacing any previous one.
	Set(ctx context.Context, userID int64, value string) error
	// Close releases the underlying connection.
	Close() error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
