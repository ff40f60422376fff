// Package config loads run configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"validator-queue-etl/internal/dune"
	"validator-queue-etl/internal/freshness"
	"validator-queue-etl/internal/publisher"
	"validator-queue-etl/internal/source"
)

// DefaultFeedURL is the validator queue historical data feed.
const DefaultFeedURL = "https://raw.githubusercontent.com/etheralpha/validatorqueue-com/refs/heads/main/historical_data.json"

// Config holds everything one run needs. Values come from the
// environment; the cmd layer may override them with flags.
type Config struct {
	FeedURL     string
	APIKey      string
	TableName   string
	Description string

	AllowStale  bool
	StaleWindow time.Duration
	HTTPTimeout time.Duration
}

// FromEnv reads configuration from the environment, applying defaults
// for everything except the API key.
func FromEnv() Config {
	return Config{
		FeedURL:     Env("QUEUE_FEED_URL", DefaultFeedURL),
		APIKey:      os.Getenv("DUNE_API_KEY"),
		TableName:   Env("QUEUE_TABLE_NAME", publisher.DefaultTableName),
		Description: Env("QUEUE_TABLE_DESCRIPTION", publisher.DefaultDescription),
		AllowStale:  EnvBool("QUEUE_ALLOW_STALE", false),
		StaleWindow: EnvDuration("QUEUE_STALE_WINDOW", freshness.DefaultWindow),
		HTTPTimeout: EnvDuration("QUEUE_HTTP_TIMEOUT", source.DefaultTimeout),
	}
}

// Validate fails fast on configuration that would only surface as an
// opaque failure mid-run.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: DUNE_API_KEY is not set", dune.ErrAuth)
	}
	if c.FeedURL == "" {
		return fmt.Errorf("feed URL is empty")
	}
	return nil
}

// Env returns the environment value for key, or def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool returns the boolean environment value for key, or def when
// unset or unparseable.
func EnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// EnvDuration returns the duration environment value for key, or def
// when unset or unparseable.
func EnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
