// Package overview builds per-user listening summaries from stored plays and
// Last.fm charts.
package overview

import (
	"context"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// PlayStore is the subset of db.PlayRepository overviews read from.
type PlayStore interface {
	Between(ctx context.Context, userID int64, from, to time.Time) ([]db.Play, error)
	CountTrack(ctx context.Context, userID int64, artist, track string, from, to time.Time) (int, error)
	CountAlbum(ctx context.Context, userID int64, artist, album string, from, to time.Time) (int, error)
	CountArtist(ctx context.Context, userID int64, artist string, from, to time.Time) (int, error)
}

// ChartSource supplies a user's Last.fm top lists for a time range.
type ChartSource interface {
	TopTracks(ctx context.Context, username string, from, to time.Time, limit int) lastfm.Response[[]lastfm.TopTrack]
	TopAlbums(ctx context.Context, username string, from, to time.Time, limit int) lastfm.Response[[]lastfm.TopAlbum]
	TopArtists(ctx context.Context, username string, from, to time.Time, limit int) lastfm.Response[[]lastfm.TopArtist]
}

// GenreSource labels a set of plays with genres.
type GenreSource interface {
	TopGenres(ctx context.Context, plays []db.Play) ([]string, error)
}

// PlayTimer estimates listening time for a set of plays.
type PlayTimer interface {
	PlayTime(ctx context.Context, plays []db.Play) time.Duration
}

// Service builds overviews.
type Service struct {
	plays    PlayStore
	charts   ChartSource
	cache    *cache.Cache
	genres   GenreSource
	playTime PlayTimer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGenres enables genre labels on daily overviews.
func WithGenres(g GenreSource) Option {
	return func(s *Service) {
		s.genres = g
	}
}

// WithPlayTime enables listening time on daily overviews.
func WithPlayTime(p PlayTimer) Option {
	return func(s *Service) {
		s.playTime = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates an overview service. c may be backed by cache.NoopStore.
func New(plays PlayStore, charts ChartSource, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		plays:  plays,
		charts: charts,
		cache:  c,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// window returns the (now-days, now] range.
func (s *Service) window(days int) (time.Time, time.Time) {
	now := s.now().UTC()
	return now.AddDate(0, 0, -days), now
}
