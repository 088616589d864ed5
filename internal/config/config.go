package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Backend
	APIBaseURL string
	LogLevel   string

	// HTTP client
	HTTPTimeout time.Duration

	// Cache staleness windows
	StaleTime          time.Duration // default window for entity reads
	MovementsStaleTime time.Duration // goal movement history
	AlertsPollInterval time.Duration // background alert refresh

	// Resilience (open-finance provider calls only)
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Credential store
	CredentialsFile string

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000/api/v1"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		StaleTime:          getEnvDuration("STALE_TIME", 5*time.Minute),
		MovementsStaleTime: getEnvDuration("MOVEMENTS_STALE_TIME", 2*time.Minute),
		AlertsPollInterval: getEnvDuration("ALERTS_POLL_INTERVAL", 30*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CredentialsFile: getEnv("CREDENTIALS_FILE", defaultCredentialsFile()),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".poupafin-credentials.json"
	}
	return filepath.Join(dir, "poupafin", "credentials.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
