package tilecache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("tile not found in cache")

// ErrDisabled is returned by backends that hold no data at all.
var ErrDisabled = errors.New("cache disabled")

// Store is the tile cache. All implementations are safe for concurrent use;
// the store is the only state shared across requests.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key under the prefix and returns how many
	// were deleted.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close() error
}
