package streaks

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
)

const (
	musicURL     = "https://www.last.fm/music/"
	noStreakText = "No active streak found."
)

// Text renders the dimensions of streak that span more than one play, one
// per line, as Markdown links to Last.fm.
func Text(streak *db.Streak, includeStart bool) string {
	if streak == nil {
		return noStreakText
	}

	artist := deref(streak.ArtistName)
	var b strings.Builder

	if streak.ArtistPlaycount > 1 {
		writeLine(&b, "Artist", artist, musicURL+url.QueryEscape(artist), streak.ArtistPlaycount)
	}
	if streak.AlbumPlaycount > 1 {
		album := deref(streak.AlbumName)
		writeLine(&b, "Album", album, musicURL+url.QueryEscape(artist)+"/"+url.QueryEscape(album), streak.AlbumPlaycount)
	}
	if streak.TrackPlaycount > 1 {
		track := deref(streak.TrackName)
		writeLine(&b, "Track", track, musicURL+url.QueryEscape(artist)+"/_/"+url.QueryEscape(track), streak.TrackPlaycount)
	}

	if b.Len() == 0 {
		return noStreakText
	}

	if includeStart {
		fmt.Fprintf(&b, "\nStreak started %s.\n", streak.StartedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Marker decorates notable counts. Exactly 100 gets its own marker; other
// counts above 50 get the fire marker.
func Marker(count int) string {
	switch {
	case count > 50 && count < 100 || count > 100:
		return "🔥 "
	case count == 100:
		return "💯 "
	default:
		return ""
	}
}

func writeLine(b *strings.Builder, label, name, link string, count int) {
	fmt.Fprintf(b, "%s: **[%s](%s)** - %s*%d plays in a row*\n", label, name, link, Marker(count), count)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
