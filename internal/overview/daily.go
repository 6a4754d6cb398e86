package overview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
)

// Day summarizes one UTC calendar day.
type Day struct {
	Date          time.Time     `json:"date"`
	Playcount     int           `json:"playcount"`
	TopArtist     *rank.Artist  `json:"top_artist,omitempty"`
	TopAlbum      *rank.Album   `json:"top_album,omitempty"`
	TopTrack      *rank.Track   `json:"top_track,omitempty"`
	TopGenres     []string      `json:"top_genres,omitempty"`
	ListeningTime time.Duration `json:"listening_time"`

	plays []db.Play
}

// Daily summarizes a range of days, newest first.
type Daily struct {
	Days      []Day   `json:"days"`
	Playcount int     `json:"playcount"`
	Uniques   int     `json:"uniques"`
	AvgPerDay float64 `json:"avg_per_day"`
}

// Daily returns a per-day breakdown of the user's plays over the last days.
// Returns nil when there are no plays in range.
func (s *Service) Daily(ctx context.Context, userID int64, days int) (*Daily, error) {
	from, to := s.window(days)
	plays, err := s.plays.Between(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("getting plays: %w", err)
	}
	if len(plays) == 0 {
		return nil, nil
	}

	// (now-days, now] touches days+1 dates; the oldest partial one is dropped
	// and the totals only cover the days that are returned.
	overview := &Daily{Days: groupByDay(plays)}
	if len(overview.Days) > days {
		overview.Days = overview.Days[:days]
	}
	var kept []db.Play
	for _, day := range overview.Days {
		kept = append(kept, day.plays...)
	}
	overview.Playcount = len(kept)
	overview.Uniques = uniqueTracks(kept)
	overview.AvgPerDay = float64(len(kept)) / float64(len(overview.Days))

	for i := range overview.Days {
		day := &overview.Days[i]
		s.enrich(ctx, userID, day)
	}

	return overview, nil
}

func (s *Service) enrich(ctx context.Context, userID int64, day *Day) {
	opts := rank.Options{Metric: rank.Playcount, Limit: 1}
	if top := rank.TopArtists(day.plays, opts); len(top) > 0 {
		day.TopArtist = &top[0]
	}
	if top := rank.TopAlbums(day.plays, opts); len(top) > 0 {
		day.TopAlbum = &top[0]
	}
	if top := rank.TopTracks(day.plays, opts); len(top) > 0 {
		day.TopTrack = &top[0]
	}

	if s.genres != nil {
		genres, err := s.genres.TopGenres(ctx, day.plays)
		if err != nil {
			logging.Warn().Err(err).Int64("user_id", userID).Time("day", day.Date).Msg("genre lookup failed")
		}
		day.TopGenres = genres
	}
	if s.playTime != nil {
		day.ListeningTime = s.playTime.PlayTime(ctx, day.plays)
	}
}

// groupByDay buckets plays by UTC date, newest day first. plays must be
// ordered newest first.
func groupByDay(plays []db.Play) []Day {
	var days []Day
	for _, p := range plays {
		t := p.PlayedAt.UTC()
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, Day{Date: date})
		}
		day := &days[len(days)-1]
		day.Playcount++
		day.plays = append(day.plays, p)
	}
	return days
}

func uniqueTracks(plays []db.Play) int {
	seen := make(map[string]struct{}, len(plays))
	for _, p := range plays {
		seen[strings.ToLower(p.ArtistName)+"\x00"+strings.ToLower(p.TrackName)] = struct{}{}
	}
	return len(seen)
}
