package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server and worker configuration
type Config struct {
	DatabaseURL        string
	ServerPort         string
	FrontendURL        string
	FirebaseProjectID  string
	OpenAIKey          string
	AIModel            string
	AIBaseURL          string
	AIRateLimit        string
	CORSAllowedOrigins []string
	EnableHSTS         bool
	RedisURL           string
	RabbitMQURL        string
	RabbitMQPrefetch   int
	TelegramBotToken   string
	DigestInterval     time.Duration
	SnapshotCacheTTL   time.Duration
	SnapshotCacheSize  int
	RequestTimeout     time.Duration
	OpenAPIPath        string
	Timezone           string
	WorkerDebugMode    bool
	ServerDebugMode    bool
	OTELEnabled        bool
	OTELEndpoint       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		FirebaseProjectID:  getEnv("FIREBASE_PROJECT_ID", ""),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		AIModel:            getEnv("AI_MODEL", "gpt-4o-mini"),
		AIBaseURL:          getEnv("OPENAI_BASE_URL", ""),
		AIRateLimit:        getEnv("AI_RATE_LIMIT", "20-M"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		EnableHSTS:         getEnvBool("ENABLE_HSTS", false),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:   getEnvInt("RABBITMQ_PREFETCH", 1),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		DigestInterval:     getEnvDuration("DIGEST_INTERVAL", 24*time.Hour),
		SnapshotCacheTTL:   getEnvDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),
		SnapshotCacheSize:  getEnvInt("SNAPSHOT_CACHE_SIZE", 1024),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		OpenAPIPath:        getEnv("OPENAPI_PATH", "api/openapi.yaml"),
		Timezone:           getEnv("TIMEZONE", ""),
		WorkerDebugMode:    getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:    getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.FirebaseProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required to verify ID tokens")
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
		}
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.FrontendURL}
	}

	return cfg, nil
}

// Location is the zone used for day boundaries in replies and digests.
// An empty Timezone means the process zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
