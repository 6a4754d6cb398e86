// Package sync keeps stored play history in step with Last.fm.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
	"github.com/justestif/go-scrobble-ledger/internal/metrics"
)

// Common errors.
var (
	// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
	ErrSyncTooRecent = errors.New("sync attempted too recently")

	// ErrUpstream is returned when the recent tracks fetch fails. The store is untouched.
	ErrUpstream = errors.New("fetching upstream plays failed")
)

// DefaultSyncCooldown is the default time between allowed syncs.
const DefaultSyncCooldown = 5 * time.Minute

// Fetch sizes for incremental syncs and first-time backfills.
const (
	DefaultFetchLimit    = 1000
	DefaultBackfillLimit = 10000
)

// UserStore is the subset of db.UserRepository the service needs.
type UserStore interface {
	Get(ctx context.Context, id int64) (*db.User, error)
	UpdateLastSync(ctx context.Context, id int64, syncTime time.Time) error
}

// EventSource supplies a user's recent scrobbles, newest first.
type EventSource interface {
	RecentTracks(ctx context.Context, username string, limit int) lastfm.Response[[]lastfm.RecentTrack]
}

// Service syncs users' Last.fm history into the play store.
type Service struct {
	users        UserStore
	source       EventSource
	reconciler   *Reconciler
	metrics      metrics.Recorder
	syncCooldown time.Duration
	fetchLimit   int
	now          func() time.Time

	inflight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithSyncCooldown sets the minimum time between syncs.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// WithFetchLimit sets how many recent tracks an incremental sync requests.
func WithFetchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new sync service.
func New(users UserStore, plays PlayStore, source EventSource, opts ...Option) *Service {
	s := &Service{
		users:        users,
		source:       source,
		metrics:      metrics.Noop{},
		syncCooldown: DefaultSyncCooldown,
		fetchLimit:   DefaultFetchLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(plays, s.metrics)
	return s
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	Added    int       `json:"added"`
	Removed  int       `json:"removed"`
	Backfill bool      `json:"backfill"`
	SyncedAt time.Time `json:"synced_at"`
}

// CanSync checks if enough time has passed since the last sync.
// It also returns the time when the next sync will be available.
func (s *Service) CanSync(user *db.User) (bool, time.Time) {
	if user.LastSyncAt == nil {
		return true, time.Time{}
	}

	nextSyncTime := user.LastSyncAt.Add(s.syncCooldown)
	if s.now().Before(nextSyncTime) {
		return false, nextSyncTime
	}
	return true, time.Time{}
}

// SyncUser fetches the user's recent scrobbles and reconciles them into the
// store. A user that has never been synced gets a full backfill.
// Concurrent calls for the same user share one run. The run is detached from
// the cancellation of whichever caller started it; a caller whose ctx ends
// stops waiting and gets ctx.Err() while the run continues for the others.
// Returns ErrSyncTooRecent within the cooldown unless force is set.
func (s *Service) SyncUser(ctx context.Context, userID int64, force bool) (*SyncResult, error) {
	key := strconv.FormatInt(userID, 10)
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.syncUser(shared, userID, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SyncResult), nil
	}
}

func (s *Service) syncUser(ctx context.Context, userID int64, force bool) (*SyncResult, error) {
	start := s.now()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	if !force {
		if canSync, nextTime := s.CanSync(user); !canSync {
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, nextTime.Format(time.RFC3339))
		}
	}

	backfill := user.LastSyncAt == nil
	limit := s.fetchLimit
	if backfill {
		limit = DefaultBackfillLimit
	}

	resp := s.source.RecentTracks(ctx, user.LastFMUsername, limit)
	if !resp.Success {
		s.metrics.SyncFailed("upstream")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, resp.Err)
	}

	var result *Result
	if backfill {
		result, err = s.reconciler.Backfill(ctx, userID, resp.Content)
	} else {
		result, err = s.reconciler.Reconcile(ctx, userID, resp.Content)
	}
	if err != nil {
		s.metrics.SyncFailed("store")
		return nil, err
	}

	syncTime := s.now()
	if err := s.users.UpdateLastSync(ctx, userID, syncTime); err != nil {
		return nil, fmt.Errorf("updating last sync: %w", err)
	}
	s.metrics.ObserveSync(syncTime.Sub(start))

	return &SyncResult{
		Added:    len(result.Added),
		Removed:  len(result.Removed),
		Backfill: backfill,
		SyncedAt: syncTime,
	}, nil
}
