// Package store defines the persistent key-value store that holds cache
// entries, and provides in-memory and file-backed implementations.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store persists cache entries by string key. Implementations must survive
// process restarts unless documented otherwise.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Closer is implemented by stores holding resources such as connections.
type Closer interface {
	Close() error
}

// Key builds the cache key for a resource path: "<namespace>:<path>".
func Key(namespace, path string) string {
	return namespace + ":" + path
}
