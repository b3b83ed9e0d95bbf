// Package config loads process settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DBMigrate    bool   `env:"DB_MIGRATE" envDefault:"true"`
	RedisURL     string `env:"REDIS_URL"`
	SessionsFile string `env:"SESSIONS_FILE"`

	Log     LoggingConfig `envPrefix:"LOG_"`
	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Webhook WebhookConfig `envPrefix:"WEBHOOK_"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"` // json | text
}

type AuthConfig struct {
	Mode       string `env:"MODE" envDefault:"dev"` // dev | hmac
	HMACSecret string `env:"HMAC_SECRET"`
}

type WebhookConfig struct {
	Workers       int           `env:"WORKERS" envDefault:"4"`
	MaxQueueDepth int           `env:"MAX_QUEUE_DEPTH" envDefault:"1000"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay     time.Duration `env:"BASE_DELAY" envDefault:"1s"`
	MaxDelay      time.Duration `env:"MAX_DELAY" envDefault:"1m"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Jitter        float64       `env:"JITTER" envDefault:"0.1"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"250ms"`
	RateRPS       float64       `env:"RATE_RPS"`
	RateBurst     int           `env:"RATE_BURST" envDefault:"10"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE %q: want dev or hmac", c.Auth.Mode))
	}
	w := c.Webhook
	if w.Workers < 1 {
		errs = append(errs, errors.New("WEBHOOK_WORKERS must be at least 1"))
	}
	if w.MaxQueueDepth < 0 {
		errs = append(errs, errors.New("WEBHOOK_MAX_QUEUE_DEPTH must not be negative"))
	}
	if w.MaxAttempts < 1 {
		errs = append(errs, errors.New("WEBHOOK_MAX_ATTEMPTS must be at least 1"))
	}
	if w.BaseDelay <= 0 || w.MaxDelay < w.BaseDelay {
		errs = append(errs, errors.New("WEBHOOK_BASE_DELAY must be positive and not above WEBHOOK_MAX_DELAY"))
	}
	if w.Timeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT must be positive"))
	}
	if w.Jitter < 0 || w.Jitter > 1 {
		errs = append(errs, errors.New("WEBHOOK_JITTER must be within [0,1]"))
	}
	if w.RateRPS < 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_RPS must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Redacted hides credentials for the debug endpoint.
func (c Config) Redacted() Config {
	if c.DatabaseURL != "" {
		c.DatabaseURL = "********"
	}
	if c.RedisURL != "" {
		c.RedisURL = "********"
	}
	if c.Auth.HMACSecret != "" {
		c.Auth.HMACSecret = "********"
	}
	return c
}
