package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tileproxy/internal/config"
	"tileproxy/internal/fetch"
	httphandlers "tileproxy/internal/http"
	"tileproxy/internal/logger"
	"tileproxy/internal/proxy"
	"tileproxy/internal/style"
	"tileproxy/internal/tilecache"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting tile proxy",
		zap.Int("port", cfg.Port),
		zap.String("cache", cfg.CacheType),
		zap.Bool("has_jawg_key", cfg.HasJawgKey()),
		zap.Bool("has_thunderforest_key", cfg.HasThunderforestKey()),
	)

	store, err := tilecache.New(cfg.CacheType, cfg.RedisURL, cfg.CacheMemoryTiles, cfg.ConnectTimeout, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer store.Close()

	styles := style.NewResolver(cfg.JawgKey, cfg.ThunderforestKey)
	fetcher := fetch.New(cfg.FetchTimeout, cfg.ConnectTimeout, cfg.MaxTileSize)
	orchestrator := proxy.New(styles, fetcher, store, cfg.CacheTTL, log)

	handlers := httphandlers.New(cfg, log, orchestrator, store)

	mux := http.NewServeMux()

	mux.HandleFunc("/tile/", handlers.HandleTile)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/cache/stats", handlers.HandleCacheStats)
	mux.HandleFunc("/cache/clear", handlers.HandleCacheClear)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
