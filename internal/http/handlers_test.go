package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tileproxy/internal/config"
	"tileproxy/internal/fetch"
	"tileproxy/internal/proxy"
	"tileproxy/internal/style"
	"tileproxy/internal/tilecache"
)

// stubFetcher serves the same payload for every URL.
type stubFetcher struct {
	outcome fetch.Outcome
	calls   int
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) fetch.Outcome {
	s.calls++
	return s.outcome
}

func newTestHandlers(f proxy.Fetcher, store tilecache.Store) *Handlers {
	cfg := &config.Config{
		CacheTTL:    864000 * time.Second,
		MaxTileSize: 1048576,
		JawgKey:     "jawg-key",
	}
	styles := style.NewResolver(cfg.JawgKey, cfg.ThunderforestKey)
	orchestrator := proxy.New(styles, f, store, cfg.CacheTTL, zap.NewNop())
	return New(cfg, zap.NewNop(), orchestrator, store)
}

func TestHandleTileMiss(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Status: fetch.StatusOK, Body: []byte("tile-bytes")}}
	h := newTestHandlers(f, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodGet, "/tile/jawg-streets/1/2/3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=864000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "tile-bytes", rec.Body.String())
}

func TestHandleTileHitAfterMiss(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Status: fetch.StatusOK, Body: []byte("tile-bytes")}}
	h := newTestHandlers(f, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodGet, "/tile/jawg-streets/1/2/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodGet, "/tile/jawg-streets/1/2/3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "tile-bytes", rec.Body.String())
	assert.Equal(t, 1, f.calls)
}

func TestHandleTileWithLanguageAndBaseStyle(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Status: fetch.StatusOK, Body: []byte("tile")}}
	store := tilecache.NewMemory(100)
	h := newTestHandlers(f, store)

	rec := httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodGet,
		"/tile/openrailwaymap-standard/3/4/12/de?base_style=jawg-light", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	// Stored under the composite key with the requested language.
	key := style.CacheKey(style.NewRequest("openrailwaymap-standard", 12, 3, 4, "de", "jawg-light"))
	_, err := store.Get(context.Background(), key)
	assert.NoError(t, err)
}

func TestHandleTileBadRequests(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Status: fetch.StatusOK, Body: []byte("tile")}}
	h := newTestHandlers(f, tilecache.NewMemory(100))

	cases := []struct {
		name string
		path string
	}{
		{"zoom too high", "/tile/jawg-streets/1/2/21"},
		{"negative zoom", "/tile/jawg-streets/1/2/-1"},
		{"unknown style", "/tile/nonexistent-style/1/2/3"},
		{"non-numeric x", "/tile/jawg-streets/abc/2/3"},
		{"non-numeric y", "/tile/jawg-streets/1/abc/3"},
		{"negative x", "/tile/jawg-streets/-1/2/3"},
		{"too few segments", "/tile/jawg-streets/1/2"},
		{"too many segments", "/tile/jawg-streets/1/2/3/en/extra"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleTile(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	// None of the rejected requests reached the upstream.
	assert.Equal(t, 0, f.calls)
}

func TestHandleTileUpstreamErrors(t *testing.T) {
	cases := []struct {
		outcome fetch.Outcome
		status  int
	}{
		{fetch.Outcome{Status: fetch.StatusUpstream, Code: http.StatusNotFound}, http.StatusNotFound},
		{fetch.Outcome{Status: fetch.StatusTooLarge}, http.StatusRequestEntityTooLarge},
		{fetch.Outcome{Status: fetch.StatusTimeout}, http.StatusGatewayTimeout},
		{fetch.Outcome{Status: fetch.StatusTransport}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandlers(&stubFetcher{outcome: tc.outcome}, tilecache.NewMemory(100))
		rec := httptest.NewRecorder()
		h.HandleTile(rec, httptest.NewRequest(http.MethodGet, "/tile/jawg-streets/1/2/3", nil))
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestHandleTileHead(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Status: fetch.StatusOK, Body: []byte("tile-bytes")}}
	h := newTestHandlers(f, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodHead, "/tile/jawg-streets/1/2/3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestHandleTileMethodNotAllowed(t *testing.T) {
	h := newTestHandlers(&stubFetcher{}, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleTile(rec, httptest.NewRequest(http.MethodPost, "/tile/jawg-streets/1/2/3", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	h := newTestHandlers(&stubFetcher{}, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "connected", health["cache"])

	env := health["environment"].(map[string]any)
	assert.Equal(t, true, env["has_jawg_key"])
	assert.Equal(t, false, env["has_thunderforest_key"])
}

func TestHandleHealthzCacheDisabled(t *testing.T) {
	h := newTestHandlers(&stubFetcher{}, tilecache.NewNoop())

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "disconnected", health["cache"])
}

func TestHandleCacheStats(t *testing.T) {
	h := newTestHandlers(&stubFetcher{}, tilecache.NewMemory(100))

	rec := httptest.NewRecorder()
	h.HandleCacheStats(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "memory", stats["backend"])
}

func TestHandleCacheClear(t *testing.T) {
	store := tilecache.NewMemory(100)
	require.NoError(t, store.Set(context.Background(), "tile:a", []byte("a"), time.Minute))
	require.NoError(t, store.Set(context.Background(), "tile:b", []byte("b"), time.Minute))

	h := newTestHandlers(&stubFetcher{}, store)

	rec := httptest.NewRecorder()
	h.HandleCacheClear(rec, httptest.NewRequest(http.MethodDelete, "/cache/clear", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["cleared"])

	// GET must not purge anything.
	rec = httptest.NewRecorder()
	h.HandleCacheClear(rec, httptest.NewRequest(http.MethodGet, "/cache/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := newTestHandlers(&stubFetcher{}, tilecache.NewMemory(100))

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h.CORSMiddleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/tile/x/1/2/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.CORSMiddleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tile/x/1/2/3", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
