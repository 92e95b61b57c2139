// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq scheduler worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SyncConfig provides settings for the lead sync engine.
type SyncConfig interface {
	GetSyncInterval() time.Duration
	GetSyncLockTTL() time.Duration
	GetFetchTimeout() time.Duration
	GetFetchRateLimitRPS() float64
	GetFieldRulesPath() string
}

// HTTPConfig provides settings for the HTTP status API.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SnapshotConfig provides settings for raw CSV snapshot archival.
type SnapshotConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSheetSnapshots() string
	IsSnapshotArchiveEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	SyncInterval              time.Duration
	SyncLockTTL               time.Duration
	FetchTimeout              time.Duration
	FetchRateLimitRPS         float64
	FieldRulesPath            string
	CORSAllowAll              bool
	CORSOrigins               []string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinioBucketSheetSnapshots string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SyncConfig implementation
func (c *Config) GetSyncInterval() time.Duration { return c.SyncInterval }
func (c *Config) GetSyncLockTTL() time.Duration  { return c.SyncLockTTL }
func (c *Config) GetFetchTimeout() time.Duration { return c.FetchTimeout }
func (c *Config) GetFetchRateLimitRPS() float64  { return c.FetchRateLimitRPS }
func (c *Config) GetFieldRulesPath() string      { return c.FieldRulesPath }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SnapshotConfig implementation
func (c *Config) GetMinIOEndpoint() string             { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string            { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string            { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                 { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketSheetSnapshots() string { return c.MinioBucketSheetSnapshots }
func (c *Config) IsSnapshotArchiveEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinioBucketSheetSnapshots != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SyncInterval:              mustDuration(getEnv("SYNC_INTERVAL", "10m")),
		SyncLockTTL:               mustDuration(getEnv("SYNC_LOCK_TTL", "15m")),
		FetchTimeout:              mustDuration(getEnv("SYNC_FETCH_TIMEOUT", "20s")),
		FetchRateLimitRPS:         mustFloat(getEnv("SYNC_RATE_LIMIT_RPS", "2")),
		FieldRulesPath:            getEnv("SYNC_FIELD_RULES_PATH", ""),
		CORSAllowAll:              strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:               splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketSheetSnapshots: getEnv("MINIO_BUCKET_SHEET_SNAPSHOTS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL must be a positive duration")
	}
	if cfg.SyncLockTTL < cfg.SyncInterval/2 {
		// A lease that expires mid-batch defeats the overlap guard.
		cfg.SyncLockTTL = cfg.SyncInterval + 5*time.Minute
	}
	if cfg.MinIOEndpoint != "" && (cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "") {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
