// Package tags fetches Last.fm artist tags and condenses them into genres.
package tags

import (
	"context"
	"sync"

	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// Default concurrency for batch processing.
const DefaultConcurrency = 5

// ArtistTags holds the tags fetched for an artist.
type ArtistTags struct {
	Artist string
	Tags   []lastfm.Tag
	Error  error // Non-nil if fetching failed
}

// TagFetcher abstracts the Last.fm client for testing.
type TagFetcher interface {
	ArtistTags(ctx context.Context, artist string) ([]lastfm.Tag, error)
}

// Service fetches tags for many artists concurrently.
type Service struct {
	fetcher     TagFetcher
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of concurrent tag fetch operations.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a new tag service.
func NewService(fetcher TagFetcher, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTagsForArtists fetches tags for multiple artists concurrently.
// Results are returned in the same order as input artists.
// Individual fetch errors are captured in ArtistTags.Error rather than failing the batch.
func (s *Service) FetchTagsForArtists(ctx context.Context, artists []string) ([]ArtistTags, error) {
	if len(artists) == 0 {
		return []ArtistTags{}, nil
	}

	results := make([]ArtistTags, len(artists))

	type workItem struct {
		index  int
		artist string
	}
	workCh := make(chan workItem, len(artists))

	for i, a := range artists {
		workCh <- workItem{index: i, artist: a}
	}
	close(workCh)

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				select {
				case <-ctx.Done():
					results[work.index] = ArtistTags{
						Artist: work.artist,
						Tags:   []lastfm.Tag{},
						Error:  ctx.Err(),
					}
					continue
				default:
				}

				tags, err := s.fetcher.ArtistTags(ctx, work.artist)
				if err != nil || tags == nil {
					tags = []lastfm.Tag{}
				}
				results[work.index] = ArtistTags{
					Artist: work.artist,
					Tags:   tags,
					Error:  err,
				}
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return results, ctx.Err()
	}

	return results, nil
}
