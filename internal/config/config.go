// Package config defines the top-level configuration for the hedge analytics
// core and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by HEDGE_* environment variables.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	MarketData MarketDataConfig `toml:"marketdata"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the shared price cache.
type RedisConfig struct {
	Enabled     bool   `toml:"enabled"`
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	PoolSize    int    `toml:"pool_size"`
	MaxRetries  int    `toml:"max_retries"`
	TLSEnabled  bool   `toml:"tls_enabled"`
	PriceTTLSec int    `toml:"price_ttl_sec"`
}

// S3Config holds object storage parameters for snapshot archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`

	RetentionDays    int `toml:"retention_days"`
	ArchiveBatchSize int `toml:"archive_batch_size"`
}

// MarketDataConfig holds the upstream price API parameters.
type MarketDataConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
	MemoTTLSec int    `toml:"memo_ttl_sec"`
}

// TrackerConfig tunes the position tracking loop.
type TrackerConfig struct {
	TickIntervalSec int `toml:"tick_interval_sec"`
	FetchTimeoutSec int `toml:"fetch_timeout_sec"`
	MaxConcurrent   int `toml:"max_concurrent"`
}

// SnapshotConfig tunes the snapshot engine.
type SnapshotConfig struct {
	MinIntervalSec  int      `toml:"min_interval_sec"`
	LoopIntervalSec int      `toml:"loop_interval_sec"`
	Wallets         []string `toml:"wallets"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

var validModes = map[string]bool{
	"track": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "hedgecore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:     true,
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			PriceTTLSec: 300,
		},
		S3: S3Config{
			Enabled:          false,
			Endpoint:         "http://localhost:9000",
			Region:           "us-east-1",
			Bucket:           "hedgecore-archive",
			ForcePathStyle:   true,
			RetentionDays:    90,
			ArchiveBatchSize: 5000,
		},
		MarketData: MarketDataConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 5,
			MemoTTLSec: 5,
		},
		Tracker: TrackerConfig{
			TickIntervalSec: 10,
			FetchTimeoutSec: 5,
			MaxConcurrent:   8,
		},
		Snapshot: SnapshotConfig{
			MinIntervalSec:  300,
			LoopIntervalSec: 300,
		},
		Mode:     "track",
		LogLevel: "info",
	}
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: track, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PriceTTLSec <= 0 {
			errs = append(errs, "redis: price_ttl_sec must be > 0")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	if c.MarketData.BaseURL == "" {
		errs = append(errs, "marketdata: base_url must not be empty")
	}
	if c.MarketData.TimeoutSec <= 0 {
		errs = append(errs, "marketdata: timeout_sec must be > 0")
	}

	if c.Tracker.TickIntervalSec <= 0 {
		errs = append(errs, "tracker: tick_interval_sec must be > 0")
	}
	if c.Tracker.MaxConcurrent < 1 {
		errs = append(errs, "tracker: max_concurrent must be >= 1")
	}

	if c.Snapshot.MinIntervalSec <= 0 {
		errs = append(errs, "snapshot: min_interval_sec must be > 0")
	}
	if strings.ToLower(c.Mode) == "full" && c.Snapshot.LoopIntervalSec <= 0 {
		errs = append(errs, "snapshot: loop_interval_sec must be > 0 in full mode")
	}

	// Telegram credentials come in pairs.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
