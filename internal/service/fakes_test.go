package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeSource struct {
	name     string
	holidays map[string]string
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchHolidays(context.Context) (map[string]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.holidays, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu   sync.Mutex
	snap *domain.HolidaySnapshot
	sets int
}

func (c *memCache) Get(context.Context) (domain.HolidaySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return domain.HolidaySnapshot{}, domain.ErrNotFound
	}
	return *c.snap, nil
}

func (c *memCache) Set(_ context.Context, snap domain.HolidaySnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &snap
	c.sets++
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	return nil
}

type memStore struct {
	mu       sync.Mutex
	source   string
	holidays map[string]string
}

func (s *memStore) ReplaceAll(_ context.Context, source string, holidays map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source, s.holidays = source, holidays
	return nil
}

func (s *memStore) LoadAll(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holidays, nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.holidays)), nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memArchive struct {
	mu    sync.Mutex
	snaps []domain.HolidaySnapshot
}

func (a *memArchive) ArchiveSnapshot(_ context.Context, snap domain.HolidaySnapshot) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
	return "holidays/latest.json", nil
}

func (a *memArchive) LatestSnapshot(context.Context) (domain.HolidaySnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.snaps) == 0 {
		return domain.HolidaySnapshot{}, domain.ErrNotFound
	}
	return a.snaps[len(a.snaps)-1], nil
}

type heldLocks struct{ held bool }

func (l *heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

// memBus is an in-process SignalBus.
type memBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
}

func newMemBus() *memBus {
	return &memBus{subs: map[string][]chan []byte{}, streams: map[string][]domain.StreamMessage{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := time.Now().Format("150405.000000000")
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{ID: id, Payload: payload})
	return nil
}

func (b *memBus) StreamRead(_ context.Context, stream, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.streams[stream]
	if count > 0 && len(msgs) > count {
		msgs = msgs[:count]
	}
	return msgs, nil
}

func (b *memBus) StreamRecent(_ context.Context, stream string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.streams[stream]
	var out []domain.StreamMessage
	for i := len(msgs) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

var errFeedDown = errors.New("feed down")

var (
	_ domain.HolidaySource    = (*fakeSource)(nil)
	_ domain.HolidayCache     = (*memCache)(nil)
	_ domain.HolidayStore     = (*memStore)(nil)
	_ domain.AuditStore       = (*memAudit)(nil)
	_ domain.SnapshotArchiver = (*memArchive)(nil)
	_ domain.LockManager      = (*heldLocks)(nil)
	_ domain.SignalBus        = (*memBus)(nil)
)
