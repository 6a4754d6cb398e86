// Package playtime estimates how long a list of plays took to listen to.
package playtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/spotify"
)

// DefaultTrackLength is used for tracks whose duration is unknown.
const DefaultTrackLength = 210 * time.Second

// DefaultConcurrency bounds concurrent duration lookups.
const DefaultConcurrency = 4

// DurationLookup resolves a track's duration. A lookup with no match returns
// spotify.ErrTrackNotFound.
type DurationLookup interface {
	TrackDuration(ctx context.Context, artist, track string) (time.Duration, error)
}

// Service sums track durations. Resolved durations, including misses, are
// remembered for the life of the Service.
type Service struct {
	lookup      DurationLookup
	concurrency int

	mu   sync.RWMutex
	memo map[string]time.Duration
}

// New creates a Service. A nil lookup makes every track DefaultTrackLength.
func New(lookup DurationLookup) *Service {
	return &Service{
		lookup:      lookup,
		concurrency: DefaultConcurrency,
		memo:        make(map[string]time.Duration),
	}
}

// PlayTime returns the estimated total listening time of plays.
func (s *Service) PlayTime(ctx context.Context, plays []db.Play) time.Duration {
	if len(plays) == 0 {
		return 0
	}
	if s.lookup == nil {
		return time.Duration(len(plays)) * DefaultTrackLength
	}

	type trackRef struct{ artist, track string }
	pending := make(map[string]trackRef)
	for _, p := range plays {
		k := key(p.ArtistName, p.TrackName)
		if _, ok := s.cached(k); ok {
			continue
		}
		pending[k] = trackRef{artist: p.ArtistName, track: p.TrackName}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for k, ref := range pending {
		g.Go(func() error {
			d, err := s.lookup.TrackDuration(gctx, ref.artist, ref.track)
			switch {
			case err == nil && d > 0:
				s.remember(k, d)
			case err == nil || errors.Is(err, spotify.ErrTrackNotFound):
				s.remember(k, DefaultTrackLength)
			default:
				logging.Debug().Err(err).Str("artist", ref.artist).Str("track", ref.track).Msg("track duration lookup failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var total time.Duration
	for _, p := range plays {
		d, ok := s.cached(key(p.ArtistName, p.TrackName))
		if !ok {
			d = DefaultTrackLength
		}
		total += d
	}
	return total
}

func (s *Service) cached(k string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.memo[k]
	return d, ok
}

func (s *Service) remember(k string, d time.Duration) {
	s.mu.Lock()
	s.memo[k] = d
	s.mu.Unlock()
}

func key(artist, track string) string {
	return strings.ToLower(artist) + "\x00" + strings.ToLower(track)
}
