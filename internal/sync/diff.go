package sync

import (
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// Drop reasons reported in Stats.
const (
	ReasonNowPlaying   = "now_playing"
	ReasonNoTimestamp  = "no_timestamp"
	ReasonDuplicate    = "duplicate_timestamp"
	ReasonBeforeWindow = "before_window"
)

// Result is the set of changes needed to make the store match a snapshot.
type Result struct {
	Added   []db.Play
	Removed []db.Play
}

// Empty reports whether the store already matched the snapshot.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Stats counts snapshot entries discarded before diffing, by reason.
type Stats struct {
	NowPlaying   int
	NoTimestamp  int
	Duplicate    int
	BeforeWindow int
}

// ByReason returns the non-zero counts keyed by drop reason.
func (s Stats) ByReason() map[string]int {
	out := make(map[string]int, 4)
	for reason, n := range map[string]int{
		ReasonNowPlaying:   s.NowPlaying,
		ReasonNoTimestamp:  s.NoTimestamp,
		ReasonDuplicate:    s.Duplicate,
		ReasonBeforeWindow: s.BeforeWindow,
	} {
		if n > 0 {
			out[reason] = n
		}
	}
	return out
}

// Normalize converts a snapshot into plays for userID. The currently playing
// track, entries without a timestamp and repeated timestamps are dropped.
// The first entry for a timestamp wins. Order is preserved.
func Normalize(snapshot []lastfm.RecentTrack, userID int64) ([]db.Play, Stats) {
	var stats Stats
	plays := make([]db.Play, 0, len(snapshot))
	seen := make(map[time.Time]struct{}, len(snapshot))

	for _, t := range snapshot {
		switch {
		case t.NowPlaying:
			stats.NowPlaying++
			continue
		case t.PlayedAt == nil:
			stats.NoTimestamp++
			continue
		}

		playedAt := t.PlayedAt.UTC()
		if _, dup := seen[playedAt]; dup {
			stats.Duplicate++
			continue
		}
		seen[playedAt] = struct{}{}

		var album *string
		if t.AlbumName != "" {
			name := t.AlbumName
			album = &name
		}

		plays = append(plays, db.Play{
			UserID:     userID,
			ArtistName: t.ArtistName,
			AlbumName:  album,
			TrackName:  t.TrackName,
			PlayedAt:   playedAt,
		})
	}

	return plays, stats
}

// Diff compares normalized snapshot plays against the most recent stored
// plays. Plays are matched by timestamp only.
//
// Snapshot plays older than the earliest stored play are outside the
// comparable window and ignored; their count is returned. Stored plays are
// only considered for removal from the earliest remaining snapshot play on.
func Diff(snapshot, existing []db.Play) (Result, int) {
	var result Result

	existingAt := make(map[time.Time]struct{}, len(existing))
	var floor time.Time
	for i, p := range existing {
		at := p.PlayedAt.UTC()
		existingAt[at] = struct{}{}
		if i == 0 || at.Before(floor) {
			floor = at
		}
	}

	window := make([]db.Play, 0, len(snapshot))
	beforeWindow := 0
	for _, p := range snapshot {
		if len(existing) > 0 && p.PlayedAt.Before(floor) {
			beforeWindow++
			continue
		}
		window = append(window, p)
	}

	snapshotAt := make(map[time.Time]struct{}, len(window))
	var snapshotFloor time.Time
	for i, p := range window {
		at := p.PlayedAt.UTC()
		snapshotAt[at] = struct{}{}
		if i == 0 || at.Before(snapshotFloor) {
			snapshotFloor = at
		}

		if _, ok := existingAt[at]; !ok {
			result.Added = append(result.Added, p)
		}
	}

	if len(window) == 0 {
		return result, beforeWindow
	}

	for _, p := range existing {
		at := p.PlayedAt.UTC()
		if at.Before(snapshotFloor) {
			continue
		}
		if _, ok := snapshotAt[at]; !ok {
			result.Removed = append(result.Removed, p)
		}
	}

	return result, beforeWindow
}
