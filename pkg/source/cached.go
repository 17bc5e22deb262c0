package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

// Cache is the byte store Cached keeps readings in.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached serves repeated lookups of the same location from a cache so the
// providers' rate limits are not burned by page reloads.
type Cached struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps src. A non-positive ttl defaults to ten minutes.
func NewCached(src Source, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{src: src, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) Name() SourceType { return c.src.Name() }

// Fetch returns a cached reading when present. Cache failures fall
// through to the wrapped source.
func (c *Cached) Fetch(ctx context.Context, loc location.Location) (*Reading, error) {
	key := c.key(loc)

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "err", err)
	}
	if ok {
		var r Reading
		if err := json.Unmarshal(data, &r); err == nil {
			return &r, nil
		}
	}

	r, err := c.src.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(r); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache set failed", "key", key, "err", err)
		}
	}
	return r, nil
}

func (c *Cached) key(loc location.Location) string {
	return "aqiwatch:reading:" + string(c.src.Name()) + ":" + loc.Key()
}
