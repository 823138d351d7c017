package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// HTTP API
	APIAddr         string
	APIReadTimeout  time.Duration
	APIWriteTimeout time.Duration

	// Availability engine
	SourceFetchTimeout time.Duration
	QueryDeadline      time.Duration
	SlotCacheTTL       time.Duration
	SlotCacheEnabled   bool

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetentionDays    int
	OutboxCleanupSchedule  string
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string

	// Google source
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GoogleRefreshToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		APIAddr:         getEnv("TEMPORA_API_ADDR", "0.0.0.0:8080"),
		APIReadTimeout:  getDurationEnv("TEMPORA_API_READ_TIMEOUT", 15*time.Second),
		APIWriteTimeout: getDurationEnv("TEMPORA_API_WRITE_TIMEOUT", 15*time.Second),

		SourceFetchTimeout: getDurationEnv("TEMPORA_SOURCE_TIMEOUT", 3*time.Second),
		QueryDeadline:      getDurationEnv("TEMPORA_QUERY_DEADLINE", 10*time.Second),
		SlotCacheTTL:       getDurationEnv("TEMPORA_SLOT_CACHE_TTL", 60*time.Second),
		SlotCacheEnabled:   getBoolEnv("TEMPORA_SLOT_CACHE_ENABLED", true),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupSchedule:  getEnv("OUTBOX_CLEANUP_SCHEDULE", "0 3 * * *"),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
