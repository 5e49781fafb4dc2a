package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BlobStore is a readable, writable and prunable object store.
type BlobStore interface {
	BlobReader
	BlobWriter
	Delete(ctx context.Context, path string) error
}

// SnapshotArchiver stores holiday snapshots for later recovery.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap HolidaySnapshot) (string, error)
	LatestSnapshot(ctx context.Context) (HolidaySnapshot, error)
}
