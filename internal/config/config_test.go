package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "https://api.ironshield.cloud" {
					t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
				}
				if !cfg.UseMultithreaded() || !cfg.EnforceDeadline {
					t.Error("expected multithreaded solving with deadline enforcement by default")
				}
				if cfg.NumThreads != 0 || cfg.Timeout != 30*time.Second {
					t.Errorf("unexpected defaults: threads=%d timeout=%v", cfg.NumThreads, cfg.Timeout)
				}
				if cfg.PostgresURL != "" || cfg.RedisURL != "" || cfg.InfluxURL != "" || len(cfg.KafkaBrokers) != 0 {
					t.Error("expected all backends disabled by default")
				}
			},
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"API_BASE_URL":    "http://localhost:8080/",
				"ENDPOINT":        "https://example.com/protected",
				"NUM_THREADS":     "6",
				"SINGLE_THREADED": "true",
				"KAFKA_BROKERS":   "k1:9092, k2:9092,",
				"HTTP_TIMEOUT":    "5s",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://localhost:8080" {
					t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
				}
				if cfg.NumThreads != 6 || cfg.UseMultithreaded() {
					t.Errorf("threads=%d multithreaded=%v", cfg.NumThreads, cfg.UseMultithreaded())
				}
				if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
					t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
				}
				if cfg.Timeout != 5*time.Second {
					t.Errorf("Timeout = %v", cfg.Timeout)
				}
			},
		},
		{
			name:    "verbose forces debug",
			envVars: map[string]string{"VERBOSE": "1", "LOG_LEVEL": "warn"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
				}
			},
		},
		{
			name:    "plain http endpoint",
			envVars: map[string]string{"ENDPOINT": "http://example.com"},
			wantErr: true,
		},
		{
			name:    "invalid api url",
			envVars: map[string]string{"API_BASE_URL": "ftp://example.com"},
			wantErr: true,
		},
		{
			name:    "negative threads",
			envVars: map[string]string{"NUM_THREADS": "-2"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			envVars: map[string]string{"LOG_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServiceName:         "test",
			APIBaseURL:          "https://api.example.com",
			Timeout:             time.Second,
			ProgressLogInterval: 1000,
			BatchSize:           100,
			LogFormat:           "json",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() should not fail for valid config: %v", err)
	}

	local := valid()
	local.APIBaseURL = "http://localhost:8080"
	if err := local.Validate(); err != nil {
		t.Errorf("Validate() should accept a plain http API base URL: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty service", func(c *Config) { c.ServiceName = "" }, "SERVICE_NAME"},
		{"relative api url", func(c *Config) { c.APIBaseURL = "/api" }, "API_BASE_URL"},
		{"api url without host", func(c *Config) { c.APIBaseURL = "http://" }, "API_BASE_URL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "HTTP_TIMEOUT"},
		{"zero log interval", func(c *Config) { c.ProgressLogInterval = 0 }, "PROGRESS_LOG_INTERVAL"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "BATCH_SIZE"},
		{"influx without org", func(c *Config) { c.InfluxURL = "http://influx:8086" }, "INFLUX_ORG"},
		{"endpoint without host", func(c *Config) { c.Endpoint = "https://" }, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "test_value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_UINT", "18446744073709551615")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_BAD_BOOL", "maybe")
	t.Setenv("TEST_DURATION", "30s")

	if got := getEnv("TEST_STRING", "default"); got != "test_value" {
		t.Errorf("getEnv() = %v, want %v", got, "test_value")
	}
	if got := getEnv("NONEXISTENT", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want %v", got, "default")
	}
	if got := getEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %v, want 42", got)
	}
	if got := getEnvUint("TEST_UINT", 0); got != ^uint64(0) {
		t.Errorf("getEnvUint() = %v, want max uint64", got)
	}
	if got := getEnvBool("TEST_BOOL", true); got {
		t.Error("getEnvBool() = true, want false")
	}
	if got := getEnvBool("TEST_BAD_BOOL", true); !got {
		t.Error("getEnvBool() should fall back to default on parse error")
	}
	if got := getEnvDuration("TEST_DURATION", 0); got != 30*time.Second {
		t.Errorf("getEnvDuration() = %v, want 30s", got)
	}
	if got := getEnvSlice("NONEXISTENT", []string{"a"}); len(got) != 1 || got[0] != "a" {
		t.Errorf("getEnvSlice() = %v, want default", got)
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{"https://example.com/protected", false},
		{"https://example.com", false},
		{"http://example.com", true},
		{"example.com", true},
		{"", true},
	}
	for _, tt := range tests {
		if err := ValidateEndpoint(tt.endpoint); (err != nil) != tt.wantErr {
			t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
		}
	}
}
