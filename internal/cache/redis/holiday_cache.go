package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HolidayCache implements domain.HolidayCache with a single hash holding the
// JSON snapshot and its source.
//
// Key schema:
//
//	{prefix}:holidays:current - hash with fields "data" and "source"
type HolidayCache struct {
	rdb *redis.Client
	key string
}

// NewHolidayCache creates a HolidayCache backed by the given Client.
func NewHolidayCache(c *Client) *HolidayCache {
	return &HolidayCache{rdb: c.Underlying(), key: c.Key("holidays", "current")}
}

// Set stores snap with the given TTL. A zero TTL keeps the entry until it is
// overwritten.
func (hc *HolidayCache) Set(ctx context.Context, snap domain.HolidaySnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal holidays: %w", err)
	}

	pipe := hc.rdb.TxPipeline()
	pipe.HSet(ctx, hc.key, "data", data, "source", snap.Source)
	if ttl > 0 {
		pipe.Expire(ctx, hc.key, ttl)
	} else {
		pipe.Persist(ctx, hc.key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set holidays: %w", err)
	}
	return nil
}

// Get returns the cached snapshot or domain.ErrNotFound.
func (hc *HolidayCache) Get(ctx context.Context) (domain.HolidaySnapshot, error) {
	data, err := hc.rdb.HGet(ctx, hc.key, "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.HolidaySnapshot{}, domain.ErrNotFound
		}
		return domain.HolidaySnapshot{}, fmt.Errorf("redis: get holidays: %w", err)
	}

	var snap domain.HolidaySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.HolidaySnapshot{}, fmt.Errorf("redis: unmarshal holidays: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (hc *HolidayCache) Invalidate(ctx context.Context) error {
	if err := hc.rdb.Del(ctx, hc.key).Err(); err != nil {
		return fmt.Errorf("redis: invalidate holidays: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HolidayCache = (*HolidayCache)(nil)
