// Package guilds aggregates plays across the counted members of a guild.
package guilds

import (
	"context"
	"fmt"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
)

// Time leaderboards skip the two most recent days, which may still be syncing.
const (
	leaderboardFrom = 9 * 24 * time.Hour
	leaderboardTo   = 2 * 24 * time.Hour
)

// PlayStore reads guild-wide plays.
type PlayStore interface {
	Plays(ctx context.Context, guildID int64, since time.Time) ([]db.Play, error)
	PlaysBetween(ctx context.Context, guildID int64, from, to time.Time) ([]db.Play, error)
}

// Service serves guild rankings.
type Service struct {
	plays PlayStore
	cache *cache.Cache
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a guild service.
func New(plays PlayStore, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		plays: plays,
		cache: c,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plays returns the guild's plays from the last days, cached for
// cache.GuildPlaysTTL. Store errors are returned and never cached.
func (s *Service) Plays(ctx context.Context, guildID int64, days int) ([]db.Play, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.GuildPlaysKey(guildID, days), func(ctx context.Context) ([]db.Play, bool, error) {
		since := s.now().UTC().AddDate(0, 0, -days)
		plays, err := s.plays.Plays(ctx, guildID, since)
		if err != nil {
			return nil, false, fmt.Errorf("getting guild plays: %w", err)
		}
		return plays, true, nil
	})
}

func (s *Service) options(metric rank.Metric, artist string) rank.Options {
	return rank.Options{Metric: metric, Artist: artist, IncludeListeners: true}
}

// TopArtists ranks the guild's artists over the last days.
func (s *Service) TopArtists(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Artist, error) {
	plays, err := s.Plays(ctx, guildID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopArtists(plays, s.options(metric, artist)), nil
}

// TopAlbums ranks the guild's albums over the last days.
func (s *Service) TopAlbums(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Album, error) {
	plays, err := s.Plays(ctx, guildID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopAlbums(plays, s.options(metric, artist)), nil
}

// TopTracks ranks the guild's tracks over the last days.
func (s *Service) TopTracks(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Track, error) {
	plays, err := s.Plays(ctx, guildID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopTracks(plays, s.options(metric, artist)), nil
}

// TimeLeaderboardPlays returns the uncached (now-9d, now-2d) play window.
func (s *Service) TimeLeaderboardPlays(ctx context.Context, guildID int64, now time.Time) ([]db.Play, error) {
	now = now.UTC()
	plays, err := s.plays.PlaysBetween(ctx, guildID, now.Add(-leaderboardFrom), now.Add(-leaderboardTo))
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard plays: %w", err)
	}
	return plays, nil
}
