package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the eval console service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Evaluation backend API
	EvalAPIURL string `envconfig:"EVAL_API_URL" required:"true"`

	// Result tracking
	PollIntervalSeconds int `envconfig:"POLL_INTERVAL_SECONDS" default:"4"`  // Fixed delay between follow-up polls
	CacheTTLSeconds     int `envconfig:"CACHE_TTL_SECONDS" default:"30"`     // Staleness horizon for cached results

	// Object storage for platform-recorded audio (optional; provider-hosted
	// recordings work without it)
	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT" default:""`
	StorageAccessKey string `envconfig:"STORAGE_ACCESS_KEY" default:""`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY" default:""`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:"call-recordings"`
	StorageUseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	AudioURLExpiry   int    `envconfig:"AUDIO_URL_EXPIRY_SECONDS" default:"900"` // Signed URL lifetime

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CacheTTL returns the cache staleness horizon as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.EvalAPIURL == "" {
		return nil, fmt.Errorf("EVAL_API_URL is required")
	}
	if cfg.PollIntervalSeconds <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	return &cfg, nil
}
