// Package cache memoizes expensive overview computations in a TTL store.
//
// Entries are written only when the computation reports full success, so a
// result built from a partial upstream failure is served once and recomputed
// on the next request.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/metrics"
)

// TTLs per cached domain.
const (
	YearOverviewTTL = 3 * time.Hour
	GuildPlaysTTL   = 10 * time.Minute
	ArtistTagsTTL   = 30 * 24 * time.Hour
)

// Key identifies a cache entry and how long it lives.
type Key struct {
	Domain string
	Name   string
	TTL    time.Duration
}

func (k Key) String() string {
	return k.Name
}

// YearOverviewKey is the entry for one user's year overview.
func YearOverviewKey(userID int64, year int) Key {
	return Key{Domain: "year", Name: fmt.Sprintf("year-ov-%d-%d", userID, year), TTL: YearOverviewTTL}
}

// GuildPlaysKey is the entry for a guild's play window of the given length.
func GuildPlaysKey(guildID int64, days int) Key {
	return Key{Domain: "guild", Name: fmt.Sprintf("guild-user-plays-%d-%d", guildID, days), TTL: GuildPlaysTTL}
}

// ArtistTagsKey is the entry for an artist's Last.fm tags.
func ArtistTagsKey(artist string) Key {
	return Key{Domain: "tags", Name: "artist-tags-" + strings.ToLower(artist), TTL: ArtistTagsTTL}
}

// Cache encodes values as JSON on top of a Store.
type Cache struct {
	store   Store
	metrics metrics.Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records hits, misses and skipped writes.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) {
		c.metrics = r
	}
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the entry at key into dst. Store and decode failures count as misses.
func (c *Cache) Get(ctx context.Context, key Key, dst any) bool {
	raw, ok, err := c.store.Get(ctx, key.Name)
	if err != nil {
		logging.Warn().Err(err).Str("key", key.Name).Msg("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.Warn().Err(err).Str("key", key.Name).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

// Set encodes value and stores it for key.TTL.
func (c *Cache) Set(ctx context.Context, key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return c.store.Set(ctx, key.Name, raw, key.TTL)
}

// GetOrCompute returns the cached value for key, or runs compute on a miss.
// The computed value is stored only when compute returns ok and no error.
// Concurrent misses may each run compute.
func GetOrCompute[T any](ctx context.Context, c *Cache, key Key, compute func(context.Context) (T, bool, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		c.metrics.CacheHit(key.Domain)
		return cached, nil
	}
	c.metrics.CacheMiss(key.Domain)

	value, ok, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		c.metrics.CacheSkipped(key.Domain)
		return value, nil
	}

	if err := c.Set(ctx, key, value); err != nil {
		logging.Warn().Err(err).Str("key", key.Name).Msg("cache write failed")
	}
	return value, nil
}
