// Package rank turns raw play lists into ordered leaderboards.
//
// Grouping is case-insensitive while each group keeps the casing of the first
// play seen. Results are sorted by the selected metric, then by the other one,
// both descending; remaining ties keep first-seen order.
package rank

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
)

// DefaultLimit is the number of entries returned when Options.Limit is zero.
// A negative limit returns every entry.
const DefaultLimit = 120

// Metric selects the primary sort order.
type Metric int

const (
	// Listeners orders by distinct users, then by plays.
	Listeners Metric = iota
	// Playcount orders by plays, then by distinct users.
	Playcount
)

func (m Metric) String() string {
	switch m {
	case Listeners:
		return "listeners"
	case Playcount:
		return "playcount"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric parses "listeners" or "playcount".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "listeners":
		return Listeners, nil
	case "playcount", "plays":
		return Playcount, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Options controls filtering and ordering.
type Options struct {
	// Since excludes plays at or before this instant.
	Since  time.Time
	Metric Metric
	// Artist, when set, restricts results to one artist (case-insensitive).
	Artist string
	Limit  int
	// IncludeListeners fills ListenerUserIDs.
	IncludeListeners bool
}

// Key pairs a normalized grouping key with the value shown to users.
type Key struct {
	Normalized string
	Display    string
}

// NewKey normalizes value for case-insensitive comparison.
func NewKey(value string) Key {
	return Key{Normalized: strings.ToLower(value), Display: value}
}

// Counts are the two metrics of a ranked entry.
type Counts struct {
	TotalPlaycount  int     `json:"total_playcount"`
	ListenerCount   int     `json:"listener_count"`
	ListenerUserIDs []int64 `json:"listener_user_ids,omitempty"`
}

// Artist is a ranked artist.
type Artist struct {
	Name string `json:"name"`
	Counts
}

// Album is a ranked album.
type Album struct {
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Counts
}

// Track is a ranked track.
type Track struct {
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Counts
}

// TopArtists ranks artists.
func TopArtists(plays []db.Play, opts Options) []Artist {
	groups := rank(plays, opts, func(p db.Play) (string, bool) {
		return NewKey(p.ArtistName).Normalized, true
	})
	out := make([]Artist, len(groups))
	for i, g := range groups {
		out[i] = Artist{Name: g.first.ArtistName, Counts: g.counts}
	}
	return out
}

// TopAlbums ranks albums. Plays without an album are ignored.
func TopAlbums(plays []db.Play, opts Options) []Album {
	groups := rank(plays, opts, func(p db.Play) (string, bool) {
		if p.AlbumName == nil {
			return "", false
		}
		return compositeKey(p.ArtistName, *p.AlbumName), true
	})
	out := make([]Album, len(groups))
	for i, g := range groups {
		out[i] = Album{Name: g.first.Album(), ArtistName: g.first.ArtistName, Counts: g.counts}
	}
	return out
}

// TopTracks ranks tracks.
func TopTracks(plays []db.Play, opts Options) []Track {
	groups := rank(plays, opts, func(p db.Play) (string, bool) {
		return compositeKey(p.ArtistName, p.TrackName), true
	})
	out := make([]Track, len(groups))
	for i, g := range groups {
		out[i] = Track{Name: g.first.TrackName, ArtistName: g.first.ArtistName, Counts: g.counts}
	}
	return out
}

type group struct {
	first  db.Play
	counts Counts
	seen   map[int64]struct{}
}

// rank filters, groups and orders plays. key reports false to skip a play.
func rank(plays []db.Play, opts Options, key func(db.Play) (string, bool)) []*group {
	artist := strings.TrimSpace(opts.Artist)
	artistKey := NewKey(artist).Normalized

	byKey := make(map[string]*group)
	var groups []*group

	for _, p := range plays {
		if !p.PlayedAt.After(opts.Since) {
			continue
		}
		if artist != "" && NewKey(p.ArtistName).Normalized != artistKey {
			continue
		}
		k, ok := key(p)
		if !ok {
			continue
		}

		g, exists := byKey[k]
		if !exists {
			g = &group{first: p, seen: make(map[int64]struct{})}
			byKey[k] = g
			groups = append(groups, g)
		}

		g.counts.TotalPlaycount++
		if _, dup := g.seen[p.UserID]; !dup {
			g.seen[p.UserID] = struct{}{}
			g.counts.ListenerCount++
			if opts.IncludeListeners {
				g.counts.ListenerUserIDs = append(g.counts.ListenerUserIDs, p.UserID)
			}
		}
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		return compare(a.counts, b.counts, opts.Metric)
	})

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// compare orders a before b when it ranks higher.
func compare(a, b Counts, metric Metric) int {
	primaryA, secondaryA := a.TotalPlaycount, a.ListenerCount
	primaryB, secondaryB := b.TotalPlaycount, b.ListenerCount
	if metric == Listeners {
		primaryA, secondaryA = secondaryA, primaryA
		primaryB, secondaryB = secondaryB, primaryB
	}
	if primaryA != primaryB {
		return primaryB - primaryA
	}
	return secondaryB - secondaryA
}

func compositeKey(artist, name string) string {
	return NewKey(artist).Normalized + "\x00" + NewKey(name).Normalized
}
