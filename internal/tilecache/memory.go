package tilecache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process LRU tile cache with per-entry expiry. It is the
// development and test backend; production uses Redis.
type MemoryStore struct {
	mu       sync.Mutex
	maxTiles int
	items    map[string]*list.Element
	lruList  *list.List
}

func NewMemory(maxTiles int) *MemoryStore {
	return &MemoryStore{
		maxTiles: maxTiles,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}

	ent := elem.Value.(*entry)
	if ent.expired(time.Now()) {
		s.lruList.Remove(elem)
		delete(s.items, key)
		return nil, ErrNotFound
	}

	s.lruList.MoveToFront(elem)
	return ent.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		s.lruList.MoveToFront(elem)
		return nil
	}

	if s.lruList.Len() >= s.maxTiles {
		oldest := s.lruList.Back()
		if oldest != nil {
			delete(s.items, oldest.Value.(*entry).key)
			s.lruList.Remove(oldest)
		}
	}

	ent := &entry{key: key, value: value, expiresAt: expiresAt}
	s.items[key] = s.lruList.PushFront(ent)
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	for key, elem := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.lruList.Remove(elem)
			delete(s.items, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"backend":   "memory",
		"tiles":     s.lruList.Len(),
		"max_tiles": s.maxTiles,
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
