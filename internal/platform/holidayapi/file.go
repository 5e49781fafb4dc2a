package holidayapi

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// FileSource reads a feed-shaped JSON document from disk.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements domain.HolidaySource.
func (f *FileSource) Name() string { return "file" }

// FetchHolidays implements domain.HolidaySource.
func (f *FileSource) FetchHolidays(_ context.Context) (map[string]string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("holidayapi: %w: %w", domain.ErrHolidayFeedUnavailable, err)
	}
	defer fh.Close()

	body, err := io.ReadAll(io.LimitReader(fh, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("holidayapi: read %s: %w: %w", f.path, domain.ErrHolidayFeedUnavailable, err)
	}
	holidays, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("holidayapi: %s: %w: %w", f.path, domain.ErrHolidayFeedUnavailable, err)
	}
	return holidays, nil
}

var _ domain.HolidaySource = (*FileSource)(nil)
