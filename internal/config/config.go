package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Notification dispatcher
	DispatcherWorkers  int
	DirectQueueSize    int
	BroadcastQueueSize int

	// Event bus
	DedupWindow  time.Duration
	RecentWindow time.Duration
	RecentLimit  int

	// Per-IP rate limit on mutating routes
	RateLimitPerSec int
	RateLimitBurst  int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		DispatcherWorkers:  getInt("DISPATCHER_WORKERS", 4),
		DirectQueueSize:    getInt("DIRECT_QUEUE_SIZE", 1024),
		BroadcastQueueSize: getInt("BROADCAST_QUEUE_SIZE", 4096),

		DedupWindow:  getDuration("EVENT_DEDUP_WINDOW", 60*time.Second),
		RecentWindow: getDuration("EVENT_RECENT_WINDOW", 24*time.Hour),
		RecentLimit:  getInt("EVENT_RECENT_LIMIT", 50),

		RateLimitPerSec: getInt("RATE_LIMIT_PER_SEC", 20),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 40),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
