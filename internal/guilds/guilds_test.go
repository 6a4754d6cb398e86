package guilds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
)

var now = time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

func play(userID int64, artist, track string, playedAt time.Time) db.Play {
	album := "Album"
	return db.Play{UserID: userID, ArtistName: artist, AlbumName: &album, TrackName: track, PlayedAt: playedAt}
}

type fakeStore struct {
	plays []db.Play
	err   error
	calls int

	from, to time.Time
}

func (f *fakeStore) Plays(_ context.Context, _ int64, since time.Time) ([]db.Play, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []db.Play
	for _, p := range f.plays {
		if p.PlayedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PlaysBetween(_ context.Context, _ int64, from, to time.Time) ([]db.Play, error) {
	f.from, f.to = from, to
	return f.plays, f.err
}

func newService(store *fakeStore) *Service {
	return New(store, cache.New(cache.NewMemoryStore(1)), WithClock(func() time.Time { return now }))
}

func TestPlays_Cached(t *testing.T) {
	store := &fakeStore{plays: []db.Play{
		play(1, "Low", "Lullaby", now.Add(-time.Hour)),
		play(2, "Low", "Lullaby", now.Add(-20*24*time.Hour)),
	}}
	svc := newService(store)
	ctx := context.Background()

	plays, err := svc.Plays(ctx, 7, 14)
	require.NoError(t, err)
	assert.Len(t, plays, 1)

	plays, err = svc.Plays(ctx, 7, 14)
	require.NoError(t, err)
	assert.Len(t, plays, 1)
	assert.Equal(t, 1, store.calls)

	_, err = svc.Plays(ctx, 7, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls, "each window has its own entry")
}

func TestPlays_ErrorNotCached(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Plays(ctx, 7, 14)
	require.Error(t, err)

	store.err = nil
	_, err = svc.Plays(ctx, 7, 14)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestTopArtists_ByMetric(t *testing.T) {
	store := &fakeStore{plays: []db.Play{
		play(1, "Yo La Tengo", "Autumn Sweater", now.Add(-1*time.Hour)),
		play(1, "Yo La Tengo", "Autumn Sweater", now.Add(-2*time.Hour)),
		play(1, "Yo La Tengo", "Sugarcube", now.Add(-3*time.Hour)),
		play(1, "Galaxie 500", "Tugboat", now.Add(-4*time.Hour)),
		play(2, "Galaxie 500", "Tugboat", now.Add(-5*time.Hour)),
	}}
	ctx := context.Background()

	byPlays, err := newService(store).TopArtists(ctx, 7, 7, rank.Playcount, "")
	require.NoError(t, err)
	require.Len(t, byPlays, 2)
	assert.Equal(t, "Yo La Tengo", byPlays[0].Name)

	byListeners, err := newService(store).TopArtists(ctx, 7, 7, rank.Listeners, "")
	require.NoError(t, err)
	assert.Equal(t, "Galaxie 500", byListeners[0].Name)
	assert.ElementsMatch(t, []int64{1, 2}, byListeners[0].ListenerUserIDs)
}

func TestTopTracks_ArtistFilter(t *testing.T) {
	store := &fakeStore{plays: []db.Play{
		play(1, "Yo La Tengo", "Autumn Sweater", now.Add(-1*time.Hour)),
		play(1, "Galaxie 500", "Tugboat", now.Add(-2*time.Hour)),
	}}

	tracks, err := newService(store).TopTracks(context.Background(), 7, 7, rank.Playcount, "galaxie 500")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Tugboat", tracks[0].Name)

	albums, err := newService(store).TopAlbums(context.Background(), 7, 7, rank.Playcount, "")
	require.NoError(t, err)
	assert.Len(t, albums, 2)
}

func TestTimeLeaderboardPlays_Window(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store)

	_, err := svc.TimeLeaderboardPlays(context.Background(), 7, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-9*24*time.Hour), store.from)
	assert.Equal(t, now.Add(-2*24*time.Hour), store.to)
}
