package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/notify"
)

// Bus names used for calendar change propagation.
const (
	ChannelCalendar = "calendar"
	StreamReloads   = "calendar:reloads"
)

// CalendarConfig tunes the CalendarService.
type CalendarConfig struct {
	CacheTTL        time.Duration
	LockKey         string
	LockTTL         time.Duration
	RefreshInterval time.Duration
}

// CalendarDeps are the optional collaborators of a CalendarService. Any nil
// field is skipped.
type CalendarDeps struct {
	Cache    domain.HolidayCache
	Store    domain.HolidayStore
	Archive  domain.SnapshotArchiver
	Audit    domain.AuditStore
	Locks    domain.LockManager
	Limiter  domain.RateLimiter
	Bus      domain.SignalBus
	Notifier *notify.Notifier
}

type loadedCalendar struct {
	cal      *calendar.Calendar
	source   string
	loadedAt time.Time
}

// CalendarService owns the process-wide holiday calendar. The calendar is
// loaded once at start-up and replaced atomically on refresh; readers never
// see a partially built calendar. Until the first load completes Calendar
// returns domain.ErrNotReady.
type CalendarService struct {
	sources  []domain.HolidaySource
	deps     CalendarDeps
	cfg      CalendarConfig
	instance string
	logger   *slog.Logger

	current   atomic.Pointer[loadedCalendar]
	ready     chan struct{}
	readyOnce sync.Once
	group     singleflight.Group

	mu        sync.RWMutex
	listeners []func(domain.CalendarEvent)
}

// NewCalendarService creates a CalendarService that tries sources in order.
func NewCalendarService(sources []domain.HolidaySource, deps CalendarDeps, cfg CalendarConfig, logger *slog.Logger) *CalendarService {
	if cfg.LockKey == "" {
		cfg.LockKey = "holiday-refresh"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &CalendarService{
		sources:  sources,
		deps:     deps,
		cfg:      cfg,
		instance: uuid.NewString(),
		logger:   logger.With(slog.String("component", "calendar_service")),
		ready:    make(chan struct{}),
	}
}

// Calendar returns the active calendar or domain.ErrNotReady.
func (s *CalendarService) Calendar() (*calendar.Calendar, error) {
	lc := s.current.Load()
	if lc == nil {
		return nil, domain.ErrNotReady
	}
	return lc.cal, nil
}

// Ready reports whether a calendar has been installed.
func (s *CalendarService) Ready() bool {
	return s.current.Load() != nil
}

// WaitReady blocks until the first calendar is installed or ctx is done.
func (s *CalendarService) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("calendar_service: wait ready: %w", ctx.Err())
	}
}

// OnChange registers fn to be called after every calendar swap.
func (s *CalendarService) OnChange(fn func(domain.CalendarEvent)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Status describes the active calendar.
func (s *CalendarService) Status() domain.ServiceStatus {
	lc := s.current.Load()
	if lc == nil {
		return domain.ServiceStatus{}
	}
	st := domain.ServiceStatus{
		Ready:          true,
		CalendarSource: lc.source,
		Degraded:       lc.cal.Degraded(),
		HolidayCount:   lc.cal.Len(),
		LoadedAt:       lc.loadedAt,
	}
	if reason := lc.cal.DegradedReason(); reason != nil {
		st.DegradedReason = reason.Error()
	}
	return st
}

// Load installs the start-up calendar: the shared cache first, then the
// sources. Concurrent callers share one load.
func (s *CalendarService) Load(ctx context.Context) (domain.CalendarEvent, error) {
	return s.do(ctx, "load", func() (domain.CalendarEvent, error) {
		if ev, ok := s.loadFromCache(ctx); ok {
			return ev, nil
		}
		return s.refresh(ctx)
	})
}

// Refresh fetches the sources again, bypassing the cache.
func (s *CalendarService) Refresh(ctx context.Context) (domain.CalendarEvent, error) {
	return s.do(ctx, "refresh", func() (domain.CalendarEvent, error) {
		return s.refresh(ctx)
	})
}

func (s *CalendarService) do(ctx context.Context, key string, fn func() (domain.CalendarEvent, error)) (domain.CalendarEvent, error) {
	ch := s.group.DoChan(key, func() (any, error) { return fn() })
	select {
	case res := <-ch:
		ev, _ := res.Val.(domain.CalendarEvent)
		return ev, res.Err
	case <-ctx.Done():
		return domain.CalendarEvent{}, ctx.Err()
	}
}

func (s *CalendarService) refresh(ctx context.Context) (domain.CalendarEvent, error) {
	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.InfoContext(ctx, "refresh already running on another instance")
			if ev, ok := s.loadFromCache(ctx); ok {
				return ev, nil
			}
		case err != nil:
			s.logger.WarnContext(ctx, "refresh lock unavailable, continuing unlocked",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	source, holidays, err := s.fetch(ctx)
	if err != nil {
		return s.degrade(ctx, err)
	}

	cal, err := calendar.New(holidays)
	if err != nil {
		return s.degrade(ctx, fmt.Errorf("%w: %s: %w", domain.ErrHolidayFeedUnavailable, source, err))
	}

	wasDegraded := s.isDegraded()
	ev := s.install(cal, source)
	s.persist(ctx, source, holidays, ev)

	if wasDegraded {
		s.notify(ctx, notify.EventCalendarRecovered, "Holiday calendar recovered",
			fmt.Sprintf("%d holidays loaded from %s", cal.Len(), source))
	}
	s.notify(ctx, notify.EventHolidayReload, "Holiday calendar reloaded",
		fmt.Sprintf("%d holidays loaded from %s", cal.Len(), source))
	return ev, nil
}

// fetch returns the first source that answers.
func (s *CalendarService) fetch(ctx context.Context) (string, map[string]string, error) {
	if len(s.sources) == 0 {
		return "", nil, fmt.Errorf("%w: no holiday source configured", domain.ErrHolidayFeedUnavailable)
	}

	var errs []error
	for _, src := range s.sources {
		// Shared across instances so a fleet restart does not hammer a feed.
		if s.deps.Limiter != nil {
			if err := s.deps.Limiter.Wait(ctx, "feed:"+src.Name()); err != nil {
				if ctx.Err() != nil {
					errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
					break
				}
				s.warn(ctx, "feed rate limiter unavailable", err)
			}
		}
		holidays, err := src.FetchHolidays(ctx)
		if err == nil && len(holidays) > 0 {
			return src.Name(), holidays, nil
		}
		if err == nil {
			err = errors.New("empty holiday set")
		}
		s.logger.WarnContext(ctx, "holiday source failed",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return "", nil, fmt.Errorf("%w: %w", domain.ErrHolidayFeedUnavailable, errors.Join(errs...))
}

// degrade keeps a good calendar if one is already active; otherwise it
// installs the weekends-only calendar. The feed error is always returned.
func (s *CalendarService) degrade(ctx context.Context, cause error) (domain.CalendarEvent, error) {
	if !errors.Is(cause, domain.ErrHolidayFeedUnavailable) {
		cause = fmt.Errorf("%w: %w", domain.ErrHolidayFeedUnavailable, cause)
	}

	if lc := s.current.Load(); lc != nil && !lc.cal.Degraded() {
		s.logger.WarnContext(ctx, "holiday refresh failed, keeping current calendar",
			slog.String("source", lc.source),
			slog.String("error", cause.Error()),
		)
		return s.event(lc), cause
	}

	s.logger.ErrorContext(ctx, "holiday feed unavailable, running weekends-only",
		slog.String("error", cause.Error()),
	)
	ev := s.install(calendar.WeekendsOnly(cause), "weekends-only")
	s.notify(ctx, notify.EventCalendarDegraded, "Holiday calendar degraded",
		"Business days are computed from weekends only: "+cause.Error())
	return ev, cause
}

func (s *CalendarService) loadFromCache(ctx context.Context) (domain.CalendarEvent, bool) {
	if s.deps.Cache == nil {
		return domain.CalendarEvent{}, false
	}
	snap, err := s.deps.Cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "holiday cache read failed", slog.String("error", err.Error()))
		}
		return domain.CalendarEvent{}, false
	}
	cal, err := calendar.New(snap.Holidays)
	if err != nil || cal.Len() == 0 {
		s.logger.WarnContext(ctx, "holiday cache entry unusable")
		return domain.CalendarEvent{}, false
	}
	return s.install(cal, snap.Source), true
}

func (s *CalendarService) install(cal *calendar.Calendar, source string) domain.CalendarEvent {
	lc := &loadedCalendar{cal: cal, source: source, loadedAt: time.Now().UTC()}
	s.current.Store(lc)
	s.readyOnce.Do(func() { close(s.ready) })

	ev := s.event(lc)
	s.logger.Info("calendar installed",
		slog.String("source", source),
		slog.Int("holidays", cal.Len()),
		slog.Bool("degraded", cal.Degraded()),
	)

	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
	return ev
}

func (s *CalendarService) event(lc *loadedCalendar) domain.CalendarEvent {
	ev := domain.CalendarEvent{
		Instance:     s.instance,
		Source:       lc.source,
		HolidayCount: lc.cal.Len(),
		Degraded:     lc.cal.Degraded(),
		LoadedAt:     lc.loadedAt,
	}
	if r := lc.cal.DegradedReason(); r != nil {
		ev.Reason = r.Error()
	}
	return ev
}

func (s *CalendarService) isDegraded() bool {
	lc := s.current.Load()
	return lc != nil && lc.cal.Degraded()
}

// persist fans a fresh holiday set out to the cache, store, archive, audit
// log and bus. Failures are logged and never undo the install.
func (s *CalendarService) persist(ctx context.Context, source string, holidays map[string]string, ev domain.CalendarEvent) {
	snap := domain.HolidaySnapshot{Source: source, Holidays: holidays, FetchedAt: ev.LoadedAt}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, snap, s.cfg.CacheTTL); err != nil {
			s.warn(ctx, "holiday cache write failed", err)
		}
	}
	// Don't write a set back to where it came from.
	if s.deps.Store != nil && source != "postgres" {
		if err := s.deps.Store.ReplaceAll(ctx, source, holidays); err != nil {
			s.warn(ctx, "holiday store write failed", err)
		}
	}
	if s.deps.Archive != nil && source != "s3-snapshot" {
		if key, err := s.deps.Archive.ArchiveSnapshot(ctx, snap); err != nil {
			s.warn(ctx, "holiday snapshot archive failed", err)
		} else {
			s.logger.InfoContext(ctx, "holiday snapshot archived", slog.String("key", key))
		}
	}
	if s.deps.Audit != nil {
		detail := map[string]any{"source": source, "holidays": len(holidays), "instance": s.instance}
		if err := s.deps.Audit.Log(ctx, notify.EventHolidayReload, detail); err != nil {
			s.warn(ctx, "audit log failed", err)
		}
	}
	if s.deps.Bus != nil {
		payload, _ := json.Marshal(ev)
		if err := s.deps.Bus.Publish(ctx, ChannelCalendar, payload); err != nil {
			s.warn(ctx, "calendar event publish failed", err)
		}
		if err := s.deps.Bus.StreamAppend(ctx, StreamReloads, payload); err != nil {
			s.warn(ctx, "calendar event append failed", err)
		}
	}
}

func (s *CalendarService) warn(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
}

func (s *CalendarService) notify(ctx context.Context, event, title, message string) {
	if err := s.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		s.warn(ctx, "notification failed", err)
	}
}

// Run refreshes the calendar every RefreshInterval until ctx is done. A zero
// interval disables periodic refresh.
func (s *CalendarService) Run(ctx context.Context) error {
	if s.cfg.RefreshInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.warn(ctx, "periodic refresh failed", err)
			}
		}
	}
}

// Watch follows calendar events published by other instances and reloads the
// shared cache when one arrives. It returns when ctx is done.
func (s *CalendarService) Watch(ctx context.Context) error {
	if s.deps.Bus == nil {
		<-ctx.Done()
		return nil
	}
	ch, err := s.deps.Bus.Subscribe(ctx, ChannelCalendar)
	if err != nil {
		return fmt.Errorf("calendar_service: subscribe: %w", err)
	}
	for payload := range ch {
		var ev domain.CalendarEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.warn(ctx, "bad calendar event", err)
			continue
		}
		if ev.Instance == s.instance || ev.Degraded {
			continue
		}
		if _, ok := s.loadFromCache(ctx); !ok {
			s.logger.WarnContext(ctx, "remote reload seen but cache is empty",
				slog.String("instance", ev.Instance),
			)
		}
	}
	return nil
}

// RecentReloads returns up to n reload events, newest first.
func (s *CalendarService) RecentReloads(ctx context.Context, n int) ([]domain.CalendarEvent, error) {
	if s.deps.Bus == nil {
		return nil, nil
	}
	msgs, err := s.deps.Bus.StreamRecent(ctx, StreamReloads, n)
	if err != nil {
		return nil, fmt.Errorf("calendar_service: recent reloads: %w", err)
	}
	out := make([]domain.CalendarEvent, 0, len(msgs))
	for _, m := range msgs {
		var ev domain.CalendarEvent
		if err := json.Unmarshal(m.Payload, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

// SourceNames lists the configured sources in priority order.
func (s *CalendarService) SourceNames() string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name()
	}
	return strings.Join(names, ",")
}
