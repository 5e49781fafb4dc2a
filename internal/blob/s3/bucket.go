package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// minPartSize is the S3 lower bound for multipart parts.
const minPartSize int64 = 5 * 1024 * 1024

// Bucket is the object store behind the snapshot archive: one bucket of
// JSON documents addressed by key.
type Bucket struct {
	client *s3.Client
	name   string
}

// NewBucket returns a Bucket over the client's configured bucket.
func NewBucket(c *Client) *Bucket {
	return &Bucket{client: c.S3(), name: c.Bucket()}
}

func (b *Bucket) object(key string) (*string, *string) {
	return aws.String(b.name), aws.String(key)
}

// Get returns the body at key; the caller closes it. A missing key wraps
// domain.ErrNotFound.
func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, k := b.object(key)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: k})
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	return out.Body, nil
}

// List returns every object under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{Path: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Put stores data at key in one PutObject call.
func (b *Bucket) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	bucket, k := b.object(key)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      bucket,
		Key:         k,
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// PutMultipart streams a JSON body of unknown length through the upload
// manager. partSize is raised to the S3 minimum; bodies under one part are
// sent as a single PutObject by the manager.
func (b *Bucket) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(b.client, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	bucket, k := b.object(key)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      bucket,
		Key:         k,
		Body:        data,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

// Delete removes key. S3 treats a missing key as deleted.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	bucket, k := b.object(key)
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: k}); err != nil {
		return fmt.Errorf("s3blob: delete %s: %w", key, err)
	}
	return nil
}

// isNotFound matches NoSuchKey, NotFound, and bare 404 responses from
// S3-compatible servers.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var httpErr interface{ HTTPStatusCode() int }
	switch {
	case errors.As(err, &nsk), errors.As(err, &nf):
		return true
	default:
		return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusNotFound
	}
}

var _ domain.BlobStore = (*Bucket)(nil)
