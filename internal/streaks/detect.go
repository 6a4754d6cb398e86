// Package streaks finds a user's active run of consecutive plays of the same
// artist, album and track, and keeps notable runs in a ledger.
package streaks

import (
	"strings"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
)

// Detect walks history (newest first) and counts, per dimension, how many
// consecutive plays share mostRecent's artist, album and track. Each
// dimension starts at 1 for mostRecent itself and stops at its first
// mismatch. The walk always starts at history[1]: history[0] is treated as
// the stored copy of mostRecent. A now-playing mostRecent is not stored yet,
// so history[0] is then a separate play that is never counted and each
// dimension comes out one short.
//
// StartedAt is the oldest play matched by any dimension. Returns nil when
// history is empty.
func Detect(userID int64, history []db.Play, mostRecent db.Play, now time.Time) *db.Streak {
	if len(history) == 0 {
		return nil
	}

	streak := &db.Streak{
		UserID:          userID,
		ArtistName:      nonEmpty(mostRecent.ArtistName),
		AlbumName:       nonEmpty(mostRecent.Album()),
		TrackName:       nonEmpty(mostRecent.TrackName),
		ArtistPlaycount: 1,
		AlbumPlaycount:  1,
		TrackPlaycount:  1,
		StartedAt:       mostRecent.PlayedAt.UTC(),
		EndedAt:         now.UTC(),
	}

	artist, album, track := true, true, true
	for _, play := range history[1:] {
		if artist && strings.EqualFold(mostRecent.ArtistName, play.ArtistName) {
			streak.ArtistPlaycount++
			streak.StartedAt = play.PlayedAt.UTC()
		} else {
			artist = false
		}

		if album && mostRecent.Album() != "" && play.Album() != "" && strings.EqualFold(mostRecent.Album(), play.Album()) {
			streak.AlbumPlaycount++
			streak.StartedAt = play.PlayedAt.UTC()
		} else {
			album = false
		}

		if track && strings.EqualFold(mostRecent.TrackName, play.TrackName) {
			streak.TrackPlaycount++
			streak.StartedAt = play.PlayedAt.UTC()
		} else {
			track = false
		}

		if !artist && !album && !track {
			break
		}
	}

	return streak
}

// Longest returns the largest count across the three dimensions.
func Longest(streak *db.Streak) int {
	return max(streak.ArtistPlaycount, streak.AlbumPlaycount, streak.TrackPlaycount)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
