package overview

import (
	"context"
	"fmt"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
)

// WeekDays is the window used by the week playcount helpers.
const WeekDays = 7

func (s *Service) recent(ctx context.Context, userID int64, days int) ([]db.Play, error) {
	from, to := s.window(days)
	plays, err := s.plays.Between(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("getting plays: %w", err)
	}
	return plays, nil
}

func allByPlaycount() rank.Options {
	return rank.Options{Metric: rank.Playcount, Limit: -1}
}

// TopArtists ranks the user's artists over the last days by playcount.
func (s *Service) TopArtists(ctx context.Context, userID int64, days int) ([]rank.Artist, error) {
	plays, err := s.recent(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopArtists(plays, allByPlaycount()), nil
}

// TopAlbums ranks the user's albums over the last days by playcount.
func (s *Service) TopAlbums(ctx context.Context, userID int64, days int) ([]rank.Album, error) {
	plays, err := s.recent(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopAlbums(plays, allByPlaycount()), nil
}

// TopTracks ranks the user's tracks over the last days by playcount.
func (s *Service) TopTracks(ctx context.Context, userID int64, days int) ([]rank.Track, error) {
	plays, err := s.recent(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return rank.TopTracks(plays, allByPlaycount()), nil
}

// TopTracksForArtist ranks the user's tracks by one artist over the last days.
func (s *Service) TopTracksForArtist(ctx context.Context, userID int64, days int, artist string) ([]rank.Track, error) {
	plays, err := s.recent(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	opts := allByPlaycount()
	opts.Artist = artist
	return rank.TopTracks(plays, opts), nil
}

// WeekTrackPlaycount counts the user's plays of a track over the last week.
func (s *Service) WeekTrackPlaycount(ctx context.Context, userID int64, artist, track string) (int, error) {
	from, to := s.window(WeekDays)
	return s.plays.CountTrack(ctx, userID, artist, track, from, to)
}

// WeekAlbumPlaycount counts the user's plays of an album over the last week.
func (s *Service) WeekAlbumPlaycount(ctx context.Context, userID int64, artist, album string) (int, error) {
	from, to := s.window(WeekDays)
	return s.plays.CountAlbum(ctx, userID, artist, album, from, to)
}

// ArtistPlaycount counts the user's plays of an artist over the last days.
func (s *Service) ArtistPlaycount(ctx context.Context, userID int64, artist string, days int) (int, error) {
	from, to := s.window(days)
	return s.plays.CountArtist(ctx, userID, artist, from, to)
}
