// Package config defines the top-level configuration for the crosstrade
// service and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CROSSTRADE_* environment variables.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Holidays HolidaysConfig `toml:"holidays"`
	Rates    RatesConfig    `toml:"rates"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	Format     string `toml:"format"` // "json" or "text"
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// HolidaysConfig selects and tunes the holiday sources. Sources are tried in
// order until one answers; the Redis cache, when enabled, is always read
// before any of them.
type HolidaysConfig struct {
	Sources         []string `toml:"sources"`
	APIURL          string   `toml:"api_url"`
	CAOURLs         []string `toml:"cao_urls"`
	File            string   `toml:"file"`
	Timeout         duration `toml:"timeout"`
	RefreshInterval duration `toml:"refresh_interval"`
	CacheTTL        duration `toml:"cache_ttl"`
	LockTTL         duration `toml:"lock_ttl"`
	ArchivePrefix   string   `toml:"archive_prefix"`
	ArchiveKeep     int      `toml:"archive_keep"`
	FeedRatePerMin  int      `toml:"feed_rate_per_min"`
}

// RatesConfig holds the funding and cost rates as decimal strings.
type RatesConfig struct {
	MarginRatio string `toml:"margin_ratio"`
	MarginFloor string `toml:"margin_floor"`
	AnnualRate  string `toml:"annual_rate"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"` // plain or bcrypt hash
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	QuietPeriod       duration `toml:"quiet_period"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Holidays: HolidaysConfig{
			Sources:         []string{"holidayapi", "cao"},
			APIURL:          "https://holidays-jp.github.io/api/v1/date.json",
			Timeout:         duration{10 * time.Second},
			RefreshInterval: duration{24 * time.Hour},
			CacheTTL:        duration{7 * 24 * time.Hour},
			LockTTL:         duration{time.Minute},
			ArchivePrefix:   "holidays",
			ArchiveKeep:     30,
			FeedRatePerMin:  6,
		},
		Rates: RatesConfig{
			MarginRatio: "0.31",
			MarginFloor: "300000",
			AnnualRate:  "0.039",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "crosstrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "crosstrade",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "ap-northeast-1",
			Bucket:         "crosstrade-holidays",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       30,
			RateLimitWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events:      []string{"calendar_degraded", "calendar_recovered"},
			QuietPeriod: duration{time.Hour},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"refresh": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the accepted holiday source names.
var validSources = map[string]bool{
	"holidayapi": true,
	"cao":        true,
	"file":       true,
	"postgres":   true,
	"s3":         true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, refresh, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: json, text)", c.Log.Format))
	}

	// Holidays
	if len(c.Holidays.Sources) == 0 {
		errs = append(errs, "holidays: at least one source is required")
	}
	for _, s := range c.Holidays.Sources {
		name := strings.ToLower(strings.TrimSpace(s))
		if !validSources[name] {
			errs = append(errs, fmt.Sprintf("holidays: unknown source %q", s))
			continue
		}
		switch name {
		case "file":
			if c.Holidays.File == "" {
				errs = append(errs, "holidays: file must be set when the file source is enabled")
			}
		case "holidayapi":
			if u, err := url.Parse(c.Holidays.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Sprintf("holidays: api_url %q is not an absolute URL", c.Holidays.APIURL))
			}
		case "postgres":
			if !c.Postgres.Enabled {
				errs = append(errs, "holidays: source postgres needs postgres.enabled")
			}
		case "s3":
			if !c.S3.Enabled {
				errs = append(errs, "holidays: source s3 needs s3.enabled")
			}
		}
	}
	if c.Holidays.Timeout.Duration <= 0 {
		errs = append(errs, "holidays: timeout must be > 0")
	}
	if c.Holidays.RefreshInterval.Duration < 0 {
		errs = append(errs, "holidays: refresh_interval must be >= 0")
	}
	if c.Holidays.ArchiveKeep < 0 {
		errs = append(errs, "holidays: archive_keep must be >= 0")
	}

	// Rates
	for name, v := range map[string]string{
		"margin_ratio": c.Rates.MarginRatio,
		"margin_floor": c.Rates.MarginFloor,
		"annual_rate":  c.Rates.AnnualRate,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			errs = append(errs, fmt.Sprintf("rates: %s must be a non-negative decimal, got %q", name, v))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Mode != "refresh" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
