package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	stdsync "sync"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return base.Add(time.Duration(hours) * time.Hour)
}

func scrobble(artist, album, track string, playedAt time.Time) lastfm.RecentTrack {
	return lastfm.RecentTrack{ArtistName: artist, AlbumName: album, TrackName: track, PlayedAt: &playedAt}
}

// snapshotOf builds a newest-first snapshot from plays.
func snapshotOf(plays []db.Play) []lastfm.RecentTrack {
	sorted := slices.Clone(plays)
	slices.SortFunc(sorted, func(a, b db.Play) int { return b.PlayedAt.Compare(a.PlayedAt) })
	out := make([]lastfm.RecentTrack, len(sorted))
	for i, p := range sorted {
		out[i] = scrobble(p.ArtistName, p.Album(), p.TrackName, p.PlayedAt)
	}
	return out
}

func play(userID int64, track string, playedAt time.Time) db.Play {
	album := "Album"
	return db.Play{UserID: userID, ArtistName: "Artist", AlbumName: &album, TrackName: track, PlayedAt: playedAt}
}

// memoryPlays is an in-memory PlayStore enforcing uniqueness on (user, playedAt).
type memoryPlays struct {
	mu    stdsync.Mutex
	plays map[int64][]db.Play

	recentErr error
	deleteErr error
	insertErr error

	deleteCalls int
	insertCalls int
	replaced    bool
}

func newMemoryPlays(plays ...db.Play) *memoryPlays {
	m := &memoryPlays{plays: make(map[int64][]db.Play)}
	for _, p := range plays {
		m.plays[p.UserID] = append(m.plays[p.UserID], p)
	}
	return m
}

func (m *memoryPlays) Recent(_ context.Context, userID int64, limit int) ([]db.Play, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	sorted := slices.Clone(m.plays[userID])
	slices.SortFunc(sorted, func(a, b db.Play) int { return b.PlayedAt.Compare(a.PlayedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *memoryPlays) DeleteAt(_ context.Context, userID int64, playedAt []time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.plays[userID] = slices.DeleteFunc(m.plays[userID], func(p db.Play) bool {
		return slices.ContainsFunc(playedAt, p.PlayedAt.Equal)
	})
	return nil
}

func (m *memoryPlays) BulkInsert(_ context.Context, plays []db.Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, p := range plays {
		if slices.ContainsFunc(m.plays[p.UserID], func(q db.Play) bool { return q.PlayedAt.Equal(p.PlayedAt) }) {
			return fmt.Errorf("duplicate key (%d, %s)", p.UserID, p.PlayedAt)
		}
	}
	for _, p := range plays {
		m.plays[p.UserID] = append(m.plays[p.UserID], p)
	}
	return nil
}

func (m *memoryPlays) ReplaceAll(_ context.Context, userID int64, plays []db.Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = true
	if m.insertErr != nil {
		return m.insertErr
	}
	m.plays[userID] = slices.Clone(plays)
	return nil
}

func (m *memoryPlays) timestamps(userID int64) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, 0, len(m.plays[userID]))
	for _, p := range m.plays[userID] {
		out = append(out, p.PlayedAt)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

type memoryUsers struct {
	mu    stdsync.Mutex
	users map[int64]*db.User
}

func (m *memoryUsers) Get(_ context.Context, id int64) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) UpdateLastSync(_ context.Context, id int64, syncTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.LastSyncAt = &syncTime
	return nil
}

type fakeSource struct {
	mu     stdsync.Mutex
	tracks []lastfm.RecentTrack
	err    error
	calls  int
	limits []int
	block  chan struct{}
}

func (f *fakeSource) RecentTracks(ctx context.Context, _ string, limit int) lastfm.Response[[]lastfm.RecentTrack] {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return lastfm.Fail[[]lastfm.RecentTrack](ctx.Err())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return lastfm.Fail[[]lastfm.RecentTrack](f.err)
	}
	return lastfm.Ok(slices.Clone(f.tracks))
}

var errStore = errors.New("connection refused")
