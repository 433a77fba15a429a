package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/warehouse-ops/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	JobsEnabled     bool `envconfig:"JOBS_ENABLED" default:"true"`
	JobsConcurrency int  `envconfig:"JOBS_CONCURRENCY" default:"5"`
	// Cron spec of the ledger integrity check; empty disables it.
	LedgerCheckCron string `envconfig:"LEDGER_CHECK_CRON" default:"*/15 * * * *"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	DefaultTenant     string `envconfig:"DEFAULT_TENANT" default:"default"`
	LowStockThreshold int    `envconfig:"LOW_STOCK_THRESHOLD" default:"0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.DefaultTenant == "" {
		return errors.New("default tenant must be provided")
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold must not be negative, got %d", c.LowStockThreshold)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimitPerMinute)
	}
	if c.JobsEnabled && c.RedisAddr == "" {
		return errors.New("redis address required when jobs are enabled")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Redis returns the shared Redis connection options.
func (c *Config) Redis() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
