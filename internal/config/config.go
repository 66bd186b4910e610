package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`

	// Remote archive.
	ArchiveURL  string        `envconfig:"ARCHIVE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"required,url"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"0" validate:"gte=0,lte=10"`
	ArchiveLag  time.Duration `envconfig:"ARCHIVE_LAG" default:"120h" validate:"gte=0"`

	// Request scheduler.
	MaxConcurrentRequests int           `envconfig:"MAX_CONCURRENT_REQUESTS" default:"2" validate:"gte=1,lte=32"`
	RequestDelay          time.Duration `envconfig:"REQUEST_DELAY" default:"500ms" validate:"gte=0"`

	// Dataset cache. An empty CachePath keeps the cache in memory only.
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"24h" validate:"gt=0"`
	CachePath string        `envconfig:"CACHE_PATH" default:"sun-cache.db"`

	// Bundled snapshot. Empty selects the roster compiled into the binary.
	FallbackPath string `envconfig:"FALLBACK_PATH"`

	// Periodic refresh. A zero RefreshYear follows the current year.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"6h" validate:"gte=0"`
	RefreshYear     int           `envconfig:"REFRESH_YEAR" default:"0" validate:"omitempty,gte=1940,lte=2100"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
}

// Load reads configuration from the environment, after merging a .env file
// when one is present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Info("could not load .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Year returns the configured refresh year, defaulting to now's year.
func (c *AppConfig) Year(now time.Time) int {
	if c.RefreshYear != 0 {
		return c.RefreshYear
	}
	return now.Year()
}
