package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CROSSTRADE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CROSSTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Log ──
	setStr(&cfg.Log.Format, "CROSSTRADE_LOG_FORMAT")
	setStr(&cfg.Log.File, "CROSSTRADE_LOG_FILE")

	// ── Holidays ──
	setStringSlice(&cfg.Holidays.Sources, "CROSSTRADE_HOLIDAYS_SOURCES")
	setStr(&cfg.Holidays.APIURL, "CROSSTRADE_HOLIDAYS_API_URL")
	setStringSlice(&cfg.Holidays.CAOURLs, "CROSSTRADE_HOLIDAYS_CAO_URLS")
	setStr(&cfg.Holidays.File, "CROSSTRADE_HOLIDAYS_FILE")
	setDuration(&cfg.Holidays.Timeout, "CROSSTRADE_HOLIDAYS_TIMEOUT")
	setDuration(&cfg.Holidays.RefreshInterval, "CROSSTRADE_HOLIDAYS_REFRESH_INTERVAL")
	setDuration(&cfg.Holidays.CacheTTL, "CROSSTRADE_HOLIDAYS_CACHE_TTL")
	setStr(&cfg.Holidays.ArchivePrefix, "CROSSTRADE_HOLIDAYS_ARCHIVE_PREFIX")
	setInt(&cfg.Holidays.ArchiveKeep, "CROSSTRADE_HOLIDAYS_ARCHIVE_KEEP")

	// ── Rates ──
	setStr(&cfg.Rates.MarginRatio, "CROSSTRADE_RATES_MARGIN_RATIO")
	setStr(&cfg.Rates.MarginFloor, "CROSSTRADE_RATES_MARGIN_FLOOR")
	setStr(&cfg.Rates.AnnualRate, "CROSSTRADE_RATES_ANNUAL_RATE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CROSSTRADE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CROSSTRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CROSSTRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CROSSTRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CROSSTRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CROSSTRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CROSSTRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CROSSTRADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CROSSTRADE_POSTGRES_POOL_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CROSSTRADE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CROSSTRADE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CROSSTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CROSSTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CROSSTRADE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "CROSSTRADE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "CROSSTRADE_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CROSSTRADE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CROSSTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CROSSTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "CROSSTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CROSSTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CROSSTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CROSSTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CROSSTRADE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "CROSSTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CROSSTRADE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CROSSTRADE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "CROSSTRADE_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CROSSTRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CROSSTRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CROSSTRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CROSSTRADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CROSSTRADE_MODE")
	setStr(&cfg.LogLevel, "CROSSTRADE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
