package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(users *memoryUsers, plays *memoryPlays, source *fakeSource, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(users, plays, source, opts...)
}

func userStore(lastSync *time.Time) *memoryUsers {
	return &memoryUsers{users: map[int64]*db.User{
		1: {ID: 1, LastFMUsername: "listener", LastSyncAt: lastSync},
	}}
}

func TestCanSync(t *testing.T) {
	svc := newService(userStore(nil), newMemoryPlays(), &fakeSource{})

	tests := []struct {
		name     string
		lastSync *time.Time
		want     bool
	}{
		{name: "never synced", lastSync: nil, want: true},
		{name: "within cooldown", lastSync: ptr(now.Add(-time.Minute)), want: false},
		{name: "after cooldown", lastSync: ptr(now.Add(-DefaultSyncCooldown - time.Second)), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next := svc.CanSync(&db.User{LastSyncAt: tt.lastSync})
			assert.Equal(t, tt.want, got)
			if !tt.want {
				assert.Equal(t, tt.lastSync.Add(DefaultSyncCooldown), next)
			}
		})
	}
}

func TestSyncUser_FirstSyncBackfills(t *testing.T) {
	users := userStore(nil)
	plays := newMemoryPlays()
	source := &fakeSource{tracks: snapshotOf(tenStored(1))}
	svc := newService(users, plays, source)

	result, err := svc.SyncUser(context.Background(), 1, false)
	require.NoError(t, err)

	assert.True(t, result.Backfill)
	assert.Equal(t, 10, result.Added)
	assert.True(t, plays.replaced)
	assert.Equal(t, []int{DefaultBackfillLimit}, source.limits)

	user, err := users.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, user.LastSyncAt)
	assert.Equal(t, now, *user.LastSyncAt)
}

func TestSyncUser_Incremental(t *testing.T) {
	plays := newMemoryPlays(tenStored(1)[:8]...)
	source := &fakeSource{tracks: snapshotOf(tenStored(1)[4:])}
	svc := newService(userStore(ptr(now.Add(-time.Hour))), plays, source, WithFetchLimit(50))

	result, err := svc.SyncUser(context.Background(), 1, false)
	require.NoError(t, err)

	assert.False(t, result.Backfill)
	assert.Equal(t, 2, result.Added)
	assert.Zero(t, result.Removed)
	assert.False(t, plays.replaced)
	assert.Equal(t, []int{50}, source.limits)
}

func TestSyncUser_Cooldown(t *testing.T) {
	lastSync := now.Add(-time.Minute)
	source := &fakeSource{tracks: snapshotOf(tenStored(1))}
	svc := newService(userStore(&lastSync), newMemoryPlays(tenStored(1)...), source)

	_, err := svc.SyncUser(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrSyncTooRecent)
	assert.Zero(t, source.calls)

	_, err = svc.SyncUser(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestSyncUser_UpstreamFailureLeavesStoreUntouched(t *testing.T) {
	users := userStore(ptr(now.Add(-time.Hour)))
	plays := newMemoryPlays(tenStored(1)...)
	source := &fakeSource{err: lastfm.ErrInvalidParams}
	rec := &countingRecorder{}
	svc := newService(users, plays, source, WithMetrics(rec))

	_, err := svc.SyncUser(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, lastfm.ErrInvalidParams)

	assert.Zero(t, plays.deleteCalls)
	assert.Zero(t, plays.insertCalls)
	assert.Len(t, plays.timestamps(1), 10)
	assert.Equal(t, []string{"upstream"}, rec.failures)

	user, _ := users.Get(context.Background(), 1)
	assert.Equal(t, now.Add(-time.Hour), *user.LastSyncAt)
}

func TestSyncUser_StoreFailure(t *testing.T) {
	plays := newMemoryPlays()
	plays.recentErr = errStore
	rec := &countingRecorder{}
	svc := newService(userStore(ptr(now.Add(-time.Hour))), plays, &fakeSource{}, WithMetrics(rec))

	_, err := svc.SyncUser(context.Background(), 1, false)
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, []string{"store"}, rec.failures)
}

func TestSyncUser_UnknownUser(t *testing.T) {
	svc := newService(&memoryUsers{users: map[int64]*db.User{}}, newMemoryPlays(), &fakeSource{})

	_, err := svc.SyncUser(context.Background(), 99, true)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestSyncUser_ConcurrentCallsShareOneRun(t *testing.T) {
	source := &fakeSource{tracks: snapshotOf(tenStored(1)), block: make(chan struct{})}
	plays := newMemoryPlays()
	svc := newService(userStore(nil), plays, source)

	var wg stdsync.WaitGroup
	results := make([]*SyncResult, 4)
	errs := make([]error, 4)
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.SyncUser(context.Background(), 1, true)
		}()
	}

	// let every caller reach the in-flight fetch before releasing it
	time.Sleep(50 * time.Millisecond)
	close(source.block)
	wg.Wait()

	for i := range 4 {
		require.NoError(t, errs[i])
		assert.Equal(t, 10, results[i].Added)
	}
	assert.Equal(t, 1, source.calls)
	assert.Len(t, plays.timestamps(1), 10)
}

func TestSyncUser_CancelledCallerDoesNotFailSharedRun(t *testing.T) {
	source := &fakeSource{tracks: snapshotOf(tenStored(1)), block: make(chan struct{})}
	plays := newMemoryPlays()
	svc := newService(userStore(nil), plays, source)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.SyncUser(firstCtx, 1, true)
		firstErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	var second *SyncResult
	var secondErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		second, secondErr = svc.SyncUser(context.Background(), 1, true)
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared run")
	}

	close(source.block)
	<-done

	require.NoError(t, secondErr)
	assert.Equal(t, 10, second.Added)
	assert.Equal(t, 1, source.calls)
	assert.Len(t, plays.timestamps(1), 10)
}

func ptr[T any](v T) *T {
	return &v
}
