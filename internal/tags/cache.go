package tags

import (
	"context"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// CachedTagFetcher implements TagFetcher on top of the shared cache.
// Tags are kept for cache.ArtistTagsTTL; failed lookups are not cached.
type CachedTagFetcher struct {
	cache   *cache.Cache
	fetcher TagFetcher
}

// NewCachedTagFetcher wraps fetcher, usually the Last.fm client.
func NewCachedTagFetcher(c *cache.Cache, fetcher TagFetcher) *CachedTagFetcher {
	return &CachedTagFetcher{
		cache:   c,
		fetcher: fetcher,
	}
}

// ArtistTags returns the artist's tags, using the cache when available.
func (c *CachedTagFetcher) ArtistTags(ctx context.Context, artist string) ([]lastfm.Tag, error) {
	return cache.GetOrCompute(ctx, c.cache, cache.ArtistTagsKey(artist), func(ctx context.Context) ([]lastfm.Tag, bool, error) {
		tags, err := c.fetcher.ArtistTags(ctx, artist)
		if err != nil {
			return nil, false, err
		}
		return tags, true, nil
	})
}
