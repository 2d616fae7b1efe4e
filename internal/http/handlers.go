package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tileproxy/internal/config"
	"tileproxy/internal/proxy"
	"tileproxy/internal/style"
	"tileproxy/internal/tilecache"
)

type Handlers struct {
	config       *config.Config
	logger       *zap.Logger
	orchestrator *proxy.Orchestrator
	store        tilecache.Store
}

func New(config *config.Config, logger *zap.Logger, orchestrator *proxy.Orchestrator, store tilecache.Store) *Handlers {
	return &Handlers{
		config:       config,
		logger:       logger,
		orchestrator: orchestrator,
		store:        store,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := "*"
		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleTile serves GET /tile/{style}/{x}/{y}/{z}[/{lang}]?base_style=
func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/tile/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || len(parts) > 5 {
		http.Error(w, "Invalid tile path", http.StatusBadRequest)
		return
	}

	styleID := parts[0]

	x, err := strconv.Atoi(parts[1])
	if err != nil || x < 0 {
		http.Error(w, "Invalid x coordinate", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil || y < 0 {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return
	}
	z, err := strconv.Atoi(parts[3])
	if err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}

	lang := ""
	if len(parts) == 5 {
		lang = parts[4]
	}

	req := style.NewRequest(styleID, z, x, y, lang, r.URL.Query().Get("base_style"))

	result, err := h.orchestrator.Resolve(r.Context(), req)
	if err != nil {
		var reqErr *proxy.RequestError
		if errors.As(err, &reqErr) {
			http.Error(w, reqErr.Reason, reqErr.Status)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	maxAge := int(h.config.CacheTTL.Seconds())
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	w.Header().Set("X-Cache", result.CacheStatus)
	w.Header().Set("Content-Type", result.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.Body)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cacheStatus := "connected"
	if err := h.store.Ping(r.Context()); err != nil {
		if errors.Is(err, tilecache.ErrDisabled) {
			cacheStatus = "disconnected"
		} else {
			cacheStatus = "error: " + err.Error()
		}
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"cache":     cacheStatus,
		"environment": map[string]any{
			"has_jawg_key":          h.config.HasJawgKey(),
			"has_thunderforest_key": h.config.HasThunderforestKey(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (h *Handlers) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// HandleCacheClear purges every cached tile. Admin endpoint.
func (h *Handlers) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := h.store.DeleteByPrefix(r.Context(), style.Namespace)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	message := "No tiles to clear"
	if deleted > 0 {
		message = fmt.Sprintf("Cleared %d cached tiles", deleted)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"message": message, "cleared": deleted})
}

// Not for real production use due to potential spoofing
// but it's fine behind a trusted proxy
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
