package overview

import (
	"context"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// Chart sizes for the year and the year before it.
const (
	YearChartLimit         = 500
	PreviousYearChartLimit = 800
)

// Year holds a user's Last.fm charts for one calendar year and, when the
// account is old enough, the year before.
type Year struct {
	Year               int                `json:"year"`
	TopTracks          []lastfm.TopTrack  `json:"top_tracks"`
	TopAlbums          []lastfm.TopAlbum  `json:"top_albums"`
	TopArtists         []lastfm.TopArtist `json:"top_artists"`
	PreviousTopTracks  []lastfm.TopTrack  `json:"previous_top_tracks,omitempty"`
	PreviousTopAlbums  []lastfm.TopAlbum  `json:"previous_top_albums,omitempty"`
	PreviousTopArtists []lastfm.TopArtist `json:"previous_top_artists,omitempty"`
	LastfmErrors       bool               `json:"lastfm_errors"`
}

// Year returns the user's year overview, cached for cache.YearOverviewTTL.
// Any failed chart sets LastfmErrors, and such an overview is never cached.
func (s *Service) Year(ctx context.Context, user *db.User, year int) (*Year, error) {
	overview, err := cache.GetOrCompute(ctx, s.cache, cache.YearOverviewKey(user.ID, year), func(ctx context.Context) (Year, bool, error) {
		ov := s.buildYear(ctx, user, year)
		return ov, !ov.LastfmErrors, nil
	})
	if err != nil {
		return nil, err
	}
	return &overview, nil
}

func (s *Service) buildYear(ctx context.Context, user *db.User, year int) Year {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0).Add(-time.Second)
	ov := Year{Year: year}

	// The current year stops at the first failure.
	tracks := s.charts.TopTracks(ctx, user.LastFMUsername, start, end, YearChartLimit)
	if !tracks.Success {
		ov.LastfmErrors = true
		return ov
	}
	ov.TopTracks = tracks.Content

	albums := s.charts.TopAlbums(ctx, user.LastFMUsername, start, end, YearChartLimit)
	if !albums.Success {
		ov.LastfmErrors = true
		return ov
	}
	ov.TopAlbums = albums.Content

	artists := s.charts.TopArtists(ctx, user.LastFMUsername, start, end, YearChartLimit)
	if !artists.Success {
		ov.LastfmErrors = true
		return ov
	}
	ov.TopArtists = artists.Content

	prevStart, prevEnd := start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0)
	if user.RegisteredLastFM == nil || !user.RegisteredLastFM.Before(prevEnd) {
		return ov
	}

	// The previous year is best effort.
	if r := s.charts.TopTracks(ctx, user.LastFMUsername, prevStart, prevEnd, PreviousYearChartLimit); r.Success {
		ov.PreviousTopTracks = r.Content
	} else {
		ov.LastfmErrors = true
	}
	if r := s.charts.TopAlbums(ctx, user.LastFMUsername, prevStart, prevEnd, PreviousYearChartLimit); r.Success {
		ov.PreviousTopAlbums = r.Content
	} else {
		ov.LastfmErrors = true
	}
	if r := s.charts.TopArtists(ctx, user.LastFMUsername, prevStart, prevEnd, PreviousYearChartLimit); r.Success {
		ov.PreviousTopArtists = r.Content
	} else {
		ov.LastfmErrors = true
	}

	return ov
}
