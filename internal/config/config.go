package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"grantlens/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database      DatabaseConfig
	HealthMetrics HealthMetricsConfig
	Pipeline      PipelineConfig
	Export        ExportConfig
}

// DatabaseConfig holds database connection settings. Persistence is
// optional: an empty URL disables the postgres artifact store.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// Enabled reports whether postgres persistence is configured
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// DSN returns the connection string with the configured sslmode applied,
// unless the URL already pins one
func (c DatabaseConfig) DSN() string {
	if c.URL == "" || c.SSLMode == "" || strings.Contains(c.URL, "sslmode=") {
		return c.URL
	}
	sep := "?"
	if strings.Contains(c.URL, "?") {
		sep = "&"
	}
	return c.URL + sep + "sslmode=" + c.SSLMode
}

// HealthMetricsConfig holds settings for the outcome-metrics service client
type HealthMetricsConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	CacheTTL          time.Duration
	UserAgent         string
}

// PipelineConfig holds run-wide processing settings
type PipelineConfig struct {
	MaxConcurrency int64
	MinGroupSize   int
	ClusterSeed    int64
	FuzzyMaxDist   int
}

// ExportConfig holds artifact output settings
type ExportConfig struct {
	Dir         string
	WriteHTML   bool
	WriteCSV    bool
	WriteXLSX   bool
	ProgressBar bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		HealthMetrics: HealthMetricsConfig{
			BaseURL:           getEnvOrDefault("HEALTH_METRICS_BASE_URL", ""),
			Timeout:           getEnvDurationOrDefault("HEALTH_METRICS_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvFloatOrDefault("HEALTH_METRICS_RPS", 4),
			Burst:             getEnvIntOrDefault("HEALTH_METRICS_BURST", 4),
			MaxRetries:        getEnvIntOrDefault("HEALTH_METRICS_MAX_RETRIES", 3),
			CacheTTL:          getEnvDurationOrDefault("HEALTH_METRICS_CACHE_TTL", 15*time.Minute),
			UserAgent:         getEnvOrDefault("HEALTH_METRICS_USER_AGENT", "grantlens/1.0"),
		},
		Pipeline: PipelineConfig{
			MaxConcurrency: int64(getEnvIntOrDefault("PIPELINE_MAX_CONCURRENCY", 4)),
			MinGroupSize:   getEnvIntOrDefault("MIN_GROUP_SIZE", 5),
			ClusterSeed:    int64(getEnvIntOrDefault("CLUSTER_SEED", 42)),
			FuzzyMaxDist:   getEnvIntOrDefault("GEO_FUZZY_MAX_DISTANCE", 2),
		},
		Export: ExportConfig{
			Dir:         getEnvOrDefault("EXPORT_DIR", "out"),
			WriteHTML:   getEnvBoolOrDefault("EXPORT_HTML", false),
			WriteCSV:    getEnvBoolOrDefault("EXPORT_CSV", true),
			WriteXLSX:   getEnvBoolOrDefault("EXPORT_XLSX", true),
			ProgressBar: getEnvBoolOrDefault("INGEST_PROGRESS", true),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.HealthMetrics.MaxRetries < 1 {
		return errors.ConfigInvalid("HEALTH_METRICS_MAX_RETRIES must be at least 1")
	}
	if config.HealthMetrics.RequestsPerSecond <= 0 {
		return errors.ConfigInvalid("HEALTH_METRICS_RPS must be positive")
	}
	if config.Pipeline.MaxConcurrency < 1 {
		return errors.ConfigInvalid("PIPELINE_MAX_CONCURRENCY must be at least 1")
	}
	if config.Pipeline.MinGroupSize < 2 {
		return errors.ConfigInvalid("MIN_GROUP_SIZE must be at least 2")
	}
	if config.Pipeline.FuzzyMaxDist < 0 {
		return errors.ConfigInvalid("GEO_FUZZY_MAX_DISTANCE cannot be negative")
	}
	if config.Export.Dir == "" {
		return errors.ConfigInvalid("EXPORT_DIR cannot be empty")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
