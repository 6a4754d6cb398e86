package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
)

// ErrTrackNotFound is returned when a search has no track results.
var ErrTrackNotFound = errors.New("track not found")

// TrackDuration searches the catalog for artist and track and returns the
// duration of the best match.
func (c *Client) TrackDuration(ctx context.Context, artist, track string) (time.Duration, error) {
	result, err := c.api.Search(ctx, searchQuery(artist, track), spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return 0, fmt.Errorf("searching track: %w", err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return 0, ErrTrackNotFound
	}

	return time.Duration(result.Tracks.Tracks[0].Duration) * time.Millisecond, nil
}

// searchQuery builds a field-filtered query. Quotes are stripped because
// they delimit the field values.
func searchQuery(artist, track string) string {
	clean := strings.NewReplacer(`"`, "").Replace
	return fmt.Sprintf(`track:"%s" artist:"%s"`, clean(track), clean(artist))
}
