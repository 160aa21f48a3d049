package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HEDGE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HEDGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "HEDGE_DATABASE_DSN")
	setStr(&cfg.Database.Host, "HEDGE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "HEDGE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "HEDGE_DATABASE_NAME")
	setStr(&cfg.Database.User, "HEDGE_DATABASE_USER")
	setStr(&cfg.Database.Password, "HEDGE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "HEDGE_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "HEDGE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "HEDGE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "HEDGE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "HEDGE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "HEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HEDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HEDGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HEDGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HEDGE_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.PriceTTLSec, "HEDGE_REDIS_PRICE_TTL_SEC")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HEDGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "HEDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HEDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HEDGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HEDGE_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "HEDGE_S3_RETENTION_DAYS")
	setInt(&cfg.S3.ArchiveBatchSize, "HEDGE_S3_ARCHIVE_BATCH_SIZE")

	// ── Market data ──
	setStr(&cfg.MarketData.BaseURL, "HEDGE_MARKETDATA_BASE_URL")
	setInt(&cfg.MarketData.TimeoutSec, "HEDGE_MARKETDATA_TIMEOUT_SEC")
	setInt(&cfg.MarketData.MemoTTLSec, "HEDGE_MARKETDATA_MEMO_TTL_SEC")

	// ── Tracker ──
	setInt(&cfg.Tracker.TickIntervalSec, "HEDGE_TRACKER_TICK_INTERVAL_SEC")
	setInt(&cfg.Tracker.FetchTimeoutSec, "HEDGE_TRACKER_FETCH_TIMEOUT_SEC")
	setInt(&cfg.Tracker.MaxConcurrent, "HEDGE_TRACKER_MAX_CONCURRENT")

	// ── Snapshot ──
	setInt(&cfg.Snapshot.MinIntervalSec, "HEDGE_SNAPSHOT_MIN_INTERVAL_SEC")
	setInt(&cfg.Snapshot.LoopIntervalSec, "HEDGE_SNAPSHOT_LOOP_INTERVAL_SEC")
	setStringSlice(&cfg.Snapshot.Wallets, "HEDGE_SNAPSHOT_WALLETS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HEDGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HEDGE_MODE")
	setStr(&cfg.LogLevel, "HEDGE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
