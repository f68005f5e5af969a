// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Transaction/profile store (optional, uses in-memory if not set)
	DatabaseURL string

	// Feature contract and classifier artifact
	ContractVersion string
	ModelPath       string // empty selects the built-in artifact for ContractVersion

	// Tier thresholds: score >= HighThreshold is high, >= MediumThreshold medium
	MediumThreshold float64
	HighThreshold   float64

	// Tracing
	OTLPEndpoint string

	// HTTP edge
	RateLimitRPM   int // 0 disables rate limiting
	RateLimitBurst int
	CORSOrigins    []string

	// Classifier circuit breaker
	BreakerThreshold int

	// Offline dataset generation
	DatasetWorkers int
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultContractVersion = "withdrawal-v1"
	DefaultMediumThreshold = 0.3
	DefaultHighThreshold   = 0.6
	DefaultDatasetWorkers  = 8
	DefaultRateLimitRPM    = 600
	DefaultRateLimitBurst  = 50
	DefaultBreakerFailures = 5
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ContractVersion: getEnv("CONTRACT_VERSION", DefaultContractVersion),
		ModelPath:       os.Getenv("MODEL_PATH"),
		MediumThreshold: getEnvFloat("RISK_MEDIUM_THRESHOLD", DefaultMediumThreshold),
		HighThreshold:   getEnvFloat("RISK_HIGH_THRESHOLD", DefaultHighThreshold),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DatasetWorkers:  int(getEnvInt64("DATASET_WORKERS", DefaultDatasetWorkers)),

		RateLimitRPM:     int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		RateLimitBurst:   int(getEnvInt64("RATE_LIMIT_BURST", DefaultRateLimitBurst)),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
		BreakerThreshold: int(getEnvInt64("CLASSIFIER_BREAKER_FAILURES", DefaultBreakerFailures)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.ContractVersion == "" {
		return fmt.Errorf("CONTRACT_VERSION is required")
	}
	if c.MediumThreshold < 0 || c.MediumThreshold > 1 {
		return fmt.Errorf("RISK_MEDIUM_THRESHOLD must be within [0, 1], got %v", c.MediumThreshold)
	}
	if c.HighThreshold < 0 || c.HighThreshold > 1 {
		return fmt.Errorf("RISK_HIGH_THRESHOLD must be within [0, 1], got %v", c.HighThreshold)
	}
	if c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("RISK_MEDIUM_THRESHOLD (%v) must not exceed RISK_HIGH_THRESHOLD (%v)",
			c.MediumThreshold, c.HighThreshold)
	}
	if c.DatasetWorkers < 1 {
		return fmt.Errorf("DATASET_WORKERS must be at least 1")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must not be negative")
	}
	if c.RateLimitRPM > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("CLASSIFIER_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
