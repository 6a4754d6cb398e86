package scheduler

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/sync"
)

type fixedUsers struct {
	users []db.User
	err   error
}

func (f fixedUsers) ListActive(context.Context) ([]db.User, error) {
	return f.users, f.err
}

type fakeSyncer struct {
	mu      stdsync.Mutex
	synced  []int64
	results map[int64]error

	active, peak atomic.Int32
	delay        time.Duration
}

func (f *fakeSyncer) SyncUser(_ context.Context, userID int64, _ bool) (*sync.SyncResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, userID)
	if err := f.results[userID]; err != nil {
		return nil, err
	}
	return &sync.SyncResult{Added: 1}, nil
}

func users(n int) []db.User {
	out := make([]db.User, n)
	for i := range out {
		out[i] = db.User{ID: int64(i + 1), LastFMUsername: fmt.Sprintf("user%d", i+1)}
	}
	return out
}

func TestRound_CountsOutcomes(t *testing.T) {
	syncer := &fakeSyncer{results: map[int64]error{
		2: fmt.Errorf("%w: next sync soon", sync.ErrSyncTooRecent),
		3: errors.New("lastfm down"),
	}}
	s := New(fixedUsers{users: users(4)}, syncer, Config{Concurrency: 2})

	r, err := s.round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Round{Synced: 2, Skipped: 1, Failed: 1}, r)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, syncer.synced)
}

func TestRound_BoundedConcurrency(t *testing.T) {
	syncer := &fakeSyncer{delay: 10 * time.Millisecond}
	s := New(fixedUsers{users: users(12)}, syncer, Config{Concurrency: 3})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Len(t, syncer.synced, 12)
	assert.LessOrEqual(t, syncer.peak.Load(), int32(3))
}

func TestRound_ListError(t *testing.T) {
	s := New(fixedUsers{err: errors.New("db down")}, &fakeSyncer{}, Config{})

	assert.Error(t, s.RunOnce(context.Background()))
}

func TestNew_Defaults(t *testing.T) {
	s := New(fixedUsers{}, &fakeSyncer{}, Config{})

	assert.Equal(t, DefaultInterval, s.cfg.Interval)
	assert.Equal(t, DefaultConcurrency, s.cfg.Concurrency)
}

func TestRun_StopsOnCancel(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(fixedUsers{users: users(1)}, syncer, Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		syncer.mu.Lock()
		defer syncer.mu.Unlock()
		return len(syncer.synced) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
