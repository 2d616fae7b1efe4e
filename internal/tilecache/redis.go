package tilecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// statsFields are the INFO fields surfaced by Stats.
var statsFields = []string{
	"redis_version",
	"used_memory_human",
	"connected_clients",
	"total_commands_processed",
	"keyspace_hits",
	"keyspace_misses",
}

// RedisStore backs the tile cache with Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis at the given URL and verifies the connection
// with a PING before returning.
func NewRedis(redisURL string, connectTimeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = connectTimeout
	opts.ReadTimeout = connectTimeout
	opts.WriteTimeout = connectTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int

	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, fmt.Errorf("cache delete: %w", err)
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return deleted, fmt.Errorf("cache delete: %w", err)
		}
		deleted += len(batch)
	}

	return deleted, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Stats returns a subset of the Redis INFO output.
func (s *RedisStore) Stats(ctx context.Context) (map[string]any, error) {
	info, err := s.client.Info(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}

	parsed := parseInfo(info)
	stats := make(map[string]any, len(statsFields))
	for _, field := range statsFields {
		if v, ok := parsed[field]; ok {
			stats[field] = v
		}
	}
	return stats, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// parseInfo flattens the "key:value" lines of the INFO reply. Section headers
// and comments start with '#' and are skipped.
func parseInfo(info string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
