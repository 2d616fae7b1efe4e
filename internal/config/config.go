package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             int
	RedisURL         string
	CacheType        string
	CacheMemoryTiles int
	CacheTTL         time.Duration
	MaxTileSize      int64
	FetchTimeout     time.Duration
	ConnectTimeout   time.Duration
	JawgKey          string
	ThunderforestKey string
	LogLevel         string
	AllowedOrigin    string
}

func Load() *Config {
	cfg := &Config{
		Port:             getEnvInt("PORT", 8080),
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379/0"),
		CacheType:        getEnv("CACHE", "redis"),
		CacheMemoryTiles: getEnvInt("CACHE_MEMORY_TILES", 2000),
		CacheTTL:         time.Duration(getEnvInt("CACHE_TTL", 864000)) * time.Second, // 10 days default
		MaxTileSize:      getEnvInt64("MAX_TILE_SIZE", 1048576),                       // 1MB default
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		ConnectTimeout:   getEnvDuration("CONNECT_TIMEOUT", 5*time.Second),
		JawgKey:          getEnv("JAWG_API_KEY", ""),
		ThunderforestKey: getEnv("THUNDERFOREST_API_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", ""),
	}

	return cfg
}

func (c *Config) HasJawgKey() bool {
	return c.JawgKey != ""
}

func (c *Config) HasThunderforestKey() bool {
	return c.ThunderforestKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
