package tilecache

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// New creates a store based on the cache type. For the redis backend the
// connection is retried a few times at startup; if Redis never answers the
// service continues without a cache rather than refusing to start.
func New(cacheType, redisURL string, memoryTiles int, connectTimeout time.Duration, log *zap.Logger) (Store, error) {
	switch cacheType {
	case "redis":
		return connectRedis(redisURL, connectTimeout, log), nil
	case "memory":
		log.Info("Using memory cache", zap.Int("max_tiles", memoryTiles))
		return NewMemory(memoryTiles), nil
	case "disabled":
		log.Info("Cache disabled")
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: redis, memory, disabled)", cacheType)
	}
}

func connectRedis(redisURL string, connectTimeout time.Duration, log *zap.Logger) Store {
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		store, err := NewRedis(redisURL, connectTimeout)
		if err == nil {
			log.Info("Redis connection successful", zap.String("url", redisURL))
			return store
		}
		log.Warn("Redis connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err),
		)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}

	log.Error("Could not connect to Redis, continuing without cache")
	return NewNoop()
}
