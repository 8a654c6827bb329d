// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Listing sources.
const (
	SourceJSON     = "json"
	SourcePostgres = "postgres"
	SourceS3       = "s3"
)

// Config holds cardfs tool configuration.
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics server (empty disables it)
	MetricsAddr string

	// Listing cache
	CacheIncrement int
	CacheLimit     int

	// Listing source ("json", "postgres" or "s3")
	Source       string
	SnapshotPath string

	// Database
	DatabaseURL string
	CardID      string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Key       string

	// FUSE
	MountPoint      string
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "console"),
		MetricsAddr:     envOr("METRICS_ADDR", ""),
		CacheIncrement:  envInt("CACHE_INCREMENT", 128),
		CacheLimit:      envInt("CACHE_LIMIT", 0), // 0 = unlimited
		Source:          envOr("SOURCE", SourceJSON),
		SnapshotPath:    envOr("SNAPSHOT_PATH", "card.json"),
		DatabaseURL:     envOr("DATABASE_URL", ""),
		CardID:          envOr("CARD_ID", ""),
		S3Endpoint:      envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:        envOr("S3_BUCKET", "cardfs"),
		S3AccessKey:     envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:     envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:        envOr("S3_REGION", "us-east-1"),
		S3UseSSL:        envBool("S3_USE_SSL", false),
		S3Key:           envOr("S3_KEY", ""),
		MountPoint:      envOr("MOUNT_POINT", "/tmp/cardfs"),
		RefreshInterval: envDuration("REFRESH_INTERVAL", 0),
	}

	if cfg.CacheIncrement <= 0 {
		return nil, fmt.Errorf("CACHE_INCREMENT must be positive")
	}
	if cfg.CacheLimit < 0 {
		return nil, fmt.Errorf("CACHE_LIMIT must not be negative")
	}

	switch cfg.Source {
	case SourceJSON:
		if cfg.SnapshotPath == "" {
			return nil, fmt.Errorf("SNAPSHOT_PATH is required for the json source")
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres source")
		}
		if cfg.CardID == "" {
			return nil, fmt.Errorf("CARD_ID is required for the postgres source")
		}
	case SourceS3:
		if cfg.S3Key == "" {
			return nil, fmt.Errorf("S3_KEY is required for the s3 source")
		}
	default:
		return nil, fmt.Errorf("unknown SOURCE %q", cfg.Source)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
