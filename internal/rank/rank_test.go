package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-scrobble-ledger/internal/db"
)

var since = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pl(userID int64, artist, album, track string, hoursAfter int) db.Play {
	var albumName *string
	if album != "" {
		albumName = &album
	}
	return db.Play{
		UserID:     userID,
		ArtistName: artist,
		AlbumName:  albumName,
		TrackName:  track,
		PlayedAt:   since.Add(time.Duration(hoursAfter) * time.Hour),
	}
}

// tiedPlays gives X three plays from two listeners and Y three plays from
// three listeners. X is seen first.
func tiedPlays() []db.Play {
	return []db.Play{
		pl(1, "X", "", "x", 1),
		pl(1, "X", "", "x", 2),
		pl(2, "X", "", "x", 3),
		pl(3, "Y", "", "y", 4),
		pl(4, "Y", "", "y", 5),
		pl(5, "Y", "", "y", 6),
	}
}

func names(artists []Artist) []string {
	out := make([]string, len(artists))
	for i, a := range artists {
		out[i] = a.Name
	}
	return out
}

func TestTopArtists_TieBreak(t *testing.T) {
	plays := tiedPlays()

	byPlays := TopArtists(plays, Options{Since: since, Metric: Playcount})
	assert.Equal(t, []string{"Y", "X"}, names(byPlays))
	assert.Equal(t, 3, byPlays[0].TotalPlaycount)
	assert.Equal(t, 3, byPlays[1].TotalPlaycount)

	byListeners := TopArtists(plays, Options{Since: since, Metric: Listeners})
	assert.Equal(t, []string{"Y", "X"}, names(byListeners))
}

func TestTopArtists_ListenersOutrankPlays(t *testing.T) {
	plays := []db.Play{
		pl(1, "Heavy", "", "a", 1),
		pl(1, "Heavy", "", "a", 2),
		pl(1, "Heavy", "", "a", 3),
		pl(2, "Wide", "", "b", 4),
		pl(3, "Wide", "", "b", 5),
	}

	assert.Equal(t, []string{"Wide", "Heavy"}, names(TopArtists(plays, Options{Since: since, Metric: Listeners})))
	assert.Equal(t, []string{"Heavy", "Wide"}, names(TopArtists(plays, Options{Since: since, Metric: Playcount})))
}

func TestTopArtists_CaseInsensitiveKeepsFirstSeen(t *testing.T) {
	plays := []db.Play{
		pl(1, "The National", "", "a", 1),
		pl(2, "THE NATIONAL", "", "a", 2),
		pl(3, "the national", "", "a", 3),
	}

	got := TopArtists(plays, Options{Since: since, IncludeListeners: true})
	require.Len(t, got, 1)
	assert.Equal(t, "The National", got[0].Name)
	assert.Equal(t, 3, got[0].TotalPlaycount)
	assert.Equal(t, 3, got[0].ListenerCount)
	assert.Equal(t, []int64{1, 2, 3}, got[0].ListenerUserIDs)
}

func TestRank_SinceIsExclusive(t *testing.T) {
	plays := []db.Play{
		pl(1, "A", "", "a", 0),
		pl(1, "B", "", "b", 1),
	}
	assert.Equal(t, []string{"B"}, names(TopArtists(plays, Options{Since: since})))
}

func TestTopAlbums(t *testing.T) {
	plays := []db.Play{
		pl(1, "A", "", "single", 1),
		pl(1, "A", "First", "t1", 2),
		pl(2, "a", "FIRST", "t2", 3),
		pl(1, "B", "First", "t3", 4),
	}

	got := TopAlbums(plays, Options{Since: since, Metric: Playcount})
	require.Len(t, got, 2)
	assert.Equal(t, Album{Name: "First", ArtistName: "A", Counts: Counts{TotalPlaycount: 2, ListenerCount: 2}}, got[0])
	assert.Equal(t, "B", got[1].ArtistName)
}

func TestTopTracks_ArtistFilter(t *testing.T) {
	plays := []db.Play{
		pl(1, "Radiohead", "", "Creep", 1),
		pl(1, "Stone Sour", "", "Creep", 2),
		pl(2, "radiohead", "", "creep", 3),
		pl(2, "Radiohead", "", "Nude", 4),
	}

	got := TopTracks(plays, Options{Since: since, Metric: Playcount, Artist: " RADIOHEAD "})
	require.Len(t, got, 2)
	assert.Equal(t, "Creep", got[0].Name)
	assert.Equal(t, "Radiohead", got[0].ArtistName)
	assert.Equal(t, 2, got[0].TotalPlaycount)
	assert.Equal(t, "Nude", got[1].Name)
}

func TestRank_Limit(t *testing.T) {
	var plays []db.Play
	for i := range 200 {
		plays = append(plays, pl(int64(i), string(rune('A'+i%26))+string(rune('a'+i/26)), "", "t", 1))
	}

	assert.Len(t, TopArtists(plays, Options{Since: since}), DefaultLimit)
	assert.Len(t, TopArtists(plays, Options{Since: since, Limit: 5}), 5)
	assert.Len(t, TopArtists(plays, Options{Since: since, Limit: -1}), 200)
}

func TestRank_Deterministic(t *testing.T) {
	plays := append(tiedPlays(), pl(9, "Z", "", "z", 1), pl(8, "W", "", "w", 1))
	first := TopTracks(plays, Options{Since: since, Metric: Listeners})
	for range 10 {
		assert.Equal(t, first, TopTracks(plays, Options{Since: since, Metric: Listeners}))
	}
	// equal counts keep first-seen order
	assert.Equal(t, "z", first[2].Name)
	assert.Equal(t, "w", first[3].Name)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Listeners")
	require.NoError(t, err)
	assert.Equal(t, Listeners, m)

	m, err = ParseMetric("plays")
	require.NoError(t, err)
	assert.Equal(t, Playcount, m)

	_, err = ParseMetric("rating")
	assert.Error(t, err)
}
