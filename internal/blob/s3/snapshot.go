package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

const (
	latestName       = "latest.json"
	snapshotLayout   = "20060102T150405Z"
	snapshotPartSize = 5 * 1024 * 1024
)

// SnapshotArchive keeps timestamped copies of every holiday set that was
// loaded, plus a latest.json pointer copy used for recovery.
//
// Layout:
//
//	{prefix}/2024/20240115T120000Z.json
//	{prefix}/latest.json
type SnapshotArchive struct {
	store  domain.BlobStore
	prefix string
	keep   int
	logger *slog.Logger
}

// NewSnapshotArchive creates an archive under prefix. keep bounds the number
// of timestamped snapshots retained; 0 keeps everything.
func NewSnapshotArchive(store domain.BlobStore, prefix string, keep int, logger *slog.Logger) *SnapshotArchive {
	return &SnapshotArchive{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		keep:   keep,
		logger: logger.With(slog.String("component", "snapshot_archive")),
	}
}

func (a *SnapshotArchive) snapshotKey(t time.Time) string {
	t = t.UTC()
	return path.Join(a.prefix, fmt.Sprintf("%04d", t.Year()), t.Format(snapshotLayout)+".json")
}

func (a *SnapshotArchive) latestKey() string {
	return path.Join(a.prefix, latestName)
}

// ArchiveSnapshot uploads snap and refreshes latest.json. It returns the key
// of the timestamped object.
func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, snap domain.HolidaySnapshot) (string, error) {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot: %w", err)
	}

	key := a.snapshotKey(snap.FetchedAt)
	if err := a.store.PutMultipart(ctx, key, bytes.NewReader(data), snapshotPartSize); err != nil {
		return "", err
	}
	if err := a.store.Put(ctx, a.latestKey(), bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}

	if a.keep > 0 {
		if err := a.prune(ctx); err != nil {
			a.logger.WarnContext(ctx, "snapshot prune failed", slog.String("error", err.Error()))
		}
	}
	return key, nil
}

// LatestSnapshot reads latest.json. A missing archive is domain.ErrNotFound.
func (a *SnapshotArchive) LatestSnapshot(ctx context.Context) (domain.HolidaySnapshot, error) {
	body, err := a.store.Get(ctx, a.latestKey())
	if err != nil {
		return domain.HolidaySnapshot{}, err
	}
	defer body.Close()

	var snap domain.HolidaySnapshot
	if err := json.NewDecoder(io.LimitReader(body, 4<<20)).Decode(&snap); err != nil {
		return domain.HolidaySnapshot{}, fmt.Errorf("s3blob: decode snapshot: %w", err)
	}
	return snap, nil
}

// Name implements domain.HolidaySource.
func (a *SnapshotArchive) Name() string { return "s3-snapshot" }

// FetchHolidays implements domain.HolidaySource from the latest snapshot.
func (a *SnapshotArchive) FetchHolidays(ctx context.Context) (map[string]string, error) {
	snap, err := a.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.Holidays) == 0 {
		return nil, fmt.Errorf("s3blob: latest snapshot is empty: %w", domain.ErrNotFound)
	}
	return snap.Holidays, nil
}

// prune deletes the oldest timestamped snapshots beyond keep.
func (a *SnapshotArchive) prune(ctx context.Context) error {
	listPrefix := a.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	infos, err := a.store.List(ctx, listPrefix)
	if err != nil {
		return err
	}

	var keys []string
	for _, info := range infos {
		if path.Base(info.Path) == latestName {
			continue
		}
		keys = append(keys, info.Path)
	}
	if len(keys) <= a.keep {
		return nil
	}
	// Keys sort chronologically because of snapshotLayout.
	sort.Strings(keys)

	var errs []error
	for _, k := range keys[:len(keys)-a.keep] {
		if err := a.store.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.SnapshotArchiver = (*SnapshotArchive)(nil)
	_ domain.HolidaySource    = (*SnapshotArchive)(nil)
)
