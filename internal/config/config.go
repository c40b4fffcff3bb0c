// Package config loads the IronShield client configuration from environment
// variables with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the client configuration
type Config struct {
	// Service identification
	ServiceName string
	Version     string

	// API connection
	APIBaseURL string
	Endpoint   string
	Timeout    time.Duration
	UserAgent  string

	// Solving
	NumThreads          int
	SingleThreaded      bool
	EnforceDeadline     bool
	ProgressLogInterval uint64
	BatchSize           uint64

	// Optional backends; an empty URL disables the backend
	PostgresURL  string
	RedisURL     string
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	KafkaBrokers []string

	// Logging
	Verbose   bool
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "ironshield"),
		Version:     getEnv("VERSION", "dev"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "https://api.ironshield.cloud"), "/"),
		Endpoint:   getEnv("ENDPOINT", ""),
		Timeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		UserAgent:  getEnv("USER_AGENT", "ironshield-cli/"+getEnv("VERSION", "dev")),

		NumThreads:          getEnvInt("NUM_THREADS", 0),
		SingleThreaded:      getEnvBool("SINGLE_THREADED", false),
		EnforceDeadline:     getEnvBool("ENFORCE_DEADLINE", true),
		ProgressLogInterval: getEnvUint("PROGRESS_LOG_INTERVAL", 1_000_000),
		BatchSize:           getEnvUint("BATCH_SIZE", 100_000),

		PostgresURL:  getEnv("POSTGRES_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "ironshield"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "solves"),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),

		Verbose:   getEnvBool("VERBOSE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values. It is exported so command-line
// overrides can be re-validated after they are applied.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME cannot be empty")
	}

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}

	if c.Endpoint != "" {
		if err := ValidateEndpoint(c.Endpoint); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if c.NumThreads < 0 {
		return fmt.Errorf("NUM_THREADS cannot be negative")
	}

	if c.ProgressLogInterval == 0 {
		return fmt.Errorf("PROGRESS_LOG_INTERVAL must be positive")
	}

	if c.BatchSize == 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}

	if c.InfluxURL != "" && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		return fmt.Errorf("INFLUX_ORG and INFLUX_BUCKET are required when INFLUX_URL is set")
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	return nil
}

// ValidateEndpoint checks that a protected endpoint is an https URL
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("endpoint must be an https URL, got %q", endpoint)
	}
	return nil
}

// UseMultithreaded reports whether solving may use more than one worker
func (c *Config) UseMultithreaded() bool {
	return !c.SingleThreaded
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
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
