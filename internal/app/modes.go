package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/server"
	"github.com/alanyoungcy/crosstrade/internal/server/handler"
	"github.com/alanyoungcy/crosstrade/internal/server/ws"
	"github.com/alanyoungcy/crosstrade/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP and WebSocket API and refreshes the holiday
// calendar periodically without archiving snapshots.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.serve(ctx, deps, a.newCalendarService(deps, false))
}

// FullMode is ServerMode with every refresh archived to S3 when S3 is
// enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.serve(ctx, deps, a.newCalendarService(deps, true))
}

// RefreshMode fetches the holiday sources once, persists the result to every
// enabled backend and returns. A failed fetch is returned as an error so the
// process exits non-zero.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting refresh mode")
	calSvc := a.newCalendarService(deps, true)

	ev, err := calSvc.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("app: refresh: %w", err)
	}
	a.logger.InfoContext(ctx, "holiday refresh complete",
		slog.String("source", ev.Source),
		slog.Int("holidays", ev.HolidayCount),
	)
	return nil
}

func (a *App) newCalendarService(deps *Dependencies, archive bool) *service.CalendarService {
	cd := service.CalendarDeps{
		Cache:    deps.HolidayCache,
		Store:    deps.HolidayStore,
		Audit:    deps.AuditStore,
		Locks:    deps.LockManager,
		Limiter:  deps.RateLimiter,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
	}
	if archive && archiveOnRefresh(a.cfg.Mode) {
		cd.Archive = deps.Snapshots
	}
	return service.NewCalendarService(deps.Sources, cd, service.CalendarConfig{
		CacheTTL:        a.cfg.Holidays.CacheTTL.Duration,
		LockTTL:         a.cfg.Holidays.LockTTL.Duration,
		RefreshInterval: a.cfg.Holidays.RefreshInterval.Duration,
	}, a.logger)
}

// serve runs the API server, the WebSocket hub, the start-up load, the
// remote reload watcher and the refresh loop until ctx is cancelled.
func (a *App) serve(ctx context.Context, deps *Dependencies, calSvc *service.CalendarService) error {
	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	quoteSvc := service.NewQuoteService(calSvc, deps.Params, a.logger)

	hub := ws.NewHub(quoteSvc, deps.SignalBus, a.logger, ws.Config{
		Mode:         a.cfg.Mode,
		StartedAt:    startedAt,
		EventChannel: service.ChannelCalendar,
	})
	if deps.SignalBus == nil {
		// Without a bus the hub only sees this instance's reloads.
		calSvc.OnChange(hub.PublishEvent)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(calSvc, a.logger),
		Status:   handler.NewStatusHandler(a.cfg.Mode, calSvc, startedAt),
		Quotes:   handler.NewQuoteHandler(quoteSvc, a.logger),
		Holidays: handler.NewHolidayHandler(calSvc, deps.AuditStore, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	// Start-up load. Requests before it completes get 503.
	g.Go(func() error {
		ev, err := calSvc.Load(ctx)
		switch {
		case err == nil:
			a.logger.InfoContext(ctx, "holiday calendar ready",
				slog.String("source", ev.Source),
				slog.Int("holidays", ev.HolidayCount),
			)
		case errors.Is(err, context.Canceled):
		case errors.Is(err, domain.ErrHolidayFeedUnavailable):
			a.logger.WarnContext(ctx, "serving with degraded calendar",
				slog.String("error", err.Error()),
			)
		default:
			return fmt.Errorf("app: initial holiday load: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		if err := calSvc.Watch(ctx); err != nil {
			// Remote reloads are missed, local refreshes still work.
			a.logger.WarnContext(ctx, "calendar watch stopped",
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	g.Go(func() error {
		return calSvc.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
