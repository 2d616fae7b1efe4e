package tilecache

import (
	"context"
	"time"
)

// NoopStore caches nothing. Used when caching is disabled or Redis never came
// up; every request goes to the upstream.
type NoopStore struct{}

func NewNoop() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNotFound
}

func (s *NoopStore) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (s *NoopStore) DeleteByPrefix(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (s *NoopStore) Ping(_ context.Context) error {
	return ErrDisabled
}

func (s *NoopStore) Stats(_ context.Context) (map[string]any, error) {
	return map[string]any{"backend": "disabled"}, nil
}

func (s *NoopStore) Close() error {
	return nil
}
