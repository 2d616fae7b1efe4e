package tilecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)

	_, err := s.Get(ctx, "tile:jawg-streets:1:2:3:int")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "tile:jawg-streets:1:2:3:int", []byte("png-bytes"), time.Minute))

	got, err := s.Get(ctx, "tile:jawg-streets:1:2:3:int")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)

	require.NoError(t, s.Set(ctx, "tile:a", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := s.Get(ctx, "tile:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)

	require.NoError(t, s.Set(ctx, "tile:a", []byte("v"), 0))

	_, err := s.Get(ctx, "tile:a")
	assert.NoError(t, err)
}

func TestMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(2)

	require.NoError(t, s.Set(ctx, "tile:a", []byte("a"), time.Minute))
	require.NoError(t, s.Set(ctx, "tile:b", []byte("b"), time.Minute))

	// Touch a so b becomes the eviction candidate.
	_, err := s.Get(ctx, "tile:a")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "tile:c", []byte("c"), time.Minute))

	_, err = s.Get(ctx, "tile:b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "tile:a")
	assert.NoError(t, err)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)

	require.NoError(t, s.Set(ctx, "tile:a", []byte("a"), time.Minute))
	require.NoError(t, s.Set(ctx, "tile:b", []byte("b"), time.Minute))
	require.NoError(t, s.Set(ctx, "other:c", []byte("c"), time.Minute))

	deleted, err := s.DeleteByPrefix(ctx, "tile:")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.Get(ctx, "other:c")
	assert.NoError(t, err)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(5)
	require.NoError(t, s.Set(ctx, "tile:a", []byte("a"), time.Minute))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats["backend"])
	assert.Equal(t, 1, stats["tiles"])
}

func TestNoopStore(t *testing.T) {
	ctx := context.Background()
	s := NewNoop()

	require.NoError(t, s.Set(ctx, "tile:a", []byte("a"), time.Minute))
	_, err := s.Get(ctx, "tile:a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Ping(ctx), ErrDisabled)
}

func TestParseInfo(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.0\r\nconnected_clients:3\r\n\r\nkeyspace_hits:42\r\n"
	parsed := parseInfo(info)

	assert.Equal(t, "7.2.0", parsed["redis_version"])
	assert.Equal(t, "3", parsed["connected_clients"])
	assert.Equal(t, "42", parsed["keyspace_hits"])
	assert.NotContains(t, parsed, "# Server")
}

func TestFactoryMemoryAndDisabled(t *testing.T) {
	log := zap.NewNop()

	s, err := New("memory", "", 10, time.Second, log)
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)

	s, err = New("disabled", "", 0, time.Second, log)
	require.NoError(t, err)
	_, ok = s.(*NoopStore)
	assert.True(t, ok)

	_, err = New("bogus", "", 0, time.Second, log)
	assert.Error(t, err)
}
