package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/crosstrade/internal/blob/s3"
	"github.com/alanyoungcy/crosstrade/internal/cache/redis"
	"github.com/alanyoungcy/crosstrade/internal/config"
	"github.com/alanyoungcy/crosstrade/internal/cost"
	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/funding"
	"github.com/alanyoungcy/crosstrade/internal/notify"
	"github.com/alanyoungcy/crosstrade/internal/platform/cao"
	"github.com/alanyoungcy/crosstrade/internal/platform/holidayapi"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Backends that are disabled in the config stay nil.
type Dependencies struct {
	// Holiday sources, in the order they are tried.
	Sources []domain.HolidaySource

	// Caches
	HolidayCache domain.HolidayCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Stores
	HolidayStore domain.HolidayStore
	AuditStore   domain.AuditStore

	// Blob storage
	Snapshots domain.SnapshotArchiver

	// Notifications
	Notifier *notify.Notifier

	// Rates used by every quote.
	Params quote.Params
}

// archiveOnRefresh reports whether refreshes in mode write S3 snapshots.
// Server mode may still read snapshots as a source.
func archiveOnRefresh(mode string) bool {
	switch mode {
	case "refresh", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	params, err := parseParams(cfg.Rates)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Params = params

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.HolidayStore = postgres.NewHolidayStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		limiter := redis.NewRateLimiter(redisClient)
		if cfg.Holidays.FeedRatePerMin > 0 {
			limiter.WaitLimit = cfg.Holidays.FeedRatePerMin
			limiter.WaitWindow = time.Minute
		}

		deps.HolidayCache = redis.NewHolidayCache(redisClient)
		deps.RateLimiter = limiter
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 snapshot archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			// Snapshots are best effort; the archive logs each failed write.
			logger.WarnContext(ctx, "s3 bucket unreachable at start-up",
				slog.String("error", err.Error()),
			)
		}

		deps.Snapshots = s3blob.NewSnapshotArchive(
			s3blob.NewBucket(s3Client),
			cfg.Holidays.ArchivePrefix,
			cfg.Holidays.ArchiveKeep,
			logger,
		)
	}

	sources, err := buildSources(cfg.Holidays, deps)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Sources = sources

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.QuietPeriod.Duration, logger)

	return deps, cleanup, nil
}

// buildSources turns the configured source names into HolidaySources. The
// postgres and s3 sources reuse the backends already wired into deps.
func buildSources(hc config.HolidaysConfig, deps *Dependencies) ([]domain.HolidaySource, error) {
	sources := make([]domain.HolidaySource, 0, len(hc.Sources))
	for _, raw := range hc.Sources {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "holidayapi":
			sources = append(sources, holidayapi.NewClient(hc.APIURL, hc.Timeout.Duration))
		case "cao":
			c, err := cao.NewClient(hc.CAOURLs, hc.Timeout.Duration)
			if err != nil {
				return nil, fmt.Errorf("source cao: %w", err)
			}
			sources = append(sources, c)
		case "file":
			if hc.File == "" {
				return nil, fmt.Errorf("source file: no path configured")
			}
			sources = append(sources, holidayapi.NewFileSource(hc.File))
		case "postgres":
			src, ok := deps.HolidayStore.(domain.HolidaySource)
			if !ok {
				return nil, fmt.Errorf("source postgres: postgres is not enabled")
			}
			sources = append(sources, src)
		case "s3":
			src, ok := deps.Snapshots.(domain.HolidaySource)
			if !ok {
				return nil, fmt.Errorf("source s3: s3 is not enabled")
			}
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("unknown holiday source %q", raw)
		}
	}
	return sources, nil
}

// parseParams reads the decimal rate strings.
func parseParams(rc config.RatesConfig) (quote.Params, error) {
	ratio, err := decimal.NewFromString(rc.MarginRatio)
	if err != nil {
		return quote.Params{}, fmt.Errorf("rates: margin_ratio: %w", err)
	}
	floor, err := decimal.NewFromString(rc.MarginFloor)
	if err != nil {
		return quote.Params{}, fmt.Errorf("rates: margin_floor: %w", err)
	}
	annual, err := decimal.NewFromString(rc.AnnualRate)
	if err != nil {
		return quote.Params{}, fmt.Errorf("rates: annual_rate: %w", err)
	}
	return quote.Params{
		Funding: funding.Calculator{MarginRatio: ratio, MarginFloor: floor},
		Cost:    cost.Calculator{AnnualRate: annual},
	}, nil
}
