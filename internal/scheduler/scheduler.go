// Package scheduler periodically refreshes every active user's plays.
package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/sync"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultInterval    = 15 * time.Minute
	DefaultConcurrency = 4
)

// UserLister lists the users due for refresh.
type UserLister interface {
	ListActive(ctx context.Context) ([]db.User, error)
}

// Syncer refreshes one user.
type Syncer interface {
	SyncUser(ctx context.Context, userID int64, force bool) (*sync.SyncResult, error)
}

// Config controls the refresh cadence.
type Config struct {
	Interval    time.Duration
	Concurrency int
}

// Scheduler runs refresh rounds on a ticker.
type Scheduler struct {
	users  UserLister
	syncer Syncer
	cfg    Config
}

// New creates a Scheduler.
func New(users UserLister, syncer Syncer, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Scheduler{users: users, syncer: syncer, cfg: cfg}
}

// Run refreshes all users once, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info().Dur("interval", s.cfg.Interval).Int("concurrency", s.cfg.Concurrency).Msg("scheduler starting")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			logging.Warn().Err(err).Msg("refresh round failed")
		}

		select {
		case <-ctx.Done():
			logging.Info().Msg("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Round is the outcome of one refresh round.
type Round struct {
	Synced  int
	Skipped int
	Failed  int
}

// RunOnce refreshes every active user, at most Concurrency at a time.
// Per-user failures are logged and counted; only listing users can fail the round.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.round(ctx)
	return err
}

func (s *Scheduler) round(ctx context.Context) (Round, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return Round{}, err
	}

	outcomes := make([]int, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, user := range users {
		g.Go(func() error {
			outcomes[i] = s.refresh(gctx, user)
			return nil
		})
	}
	_ = g.Wait()

	var r Round
	for _, o := range outcomes {
		switch o {
		case outcomeSynced:
			r.Synced++
		case outcomeSkipped:
			r.Skipped++
		default:
			r.Failed++
		}
	}
	logging.Info().
		Int("users", len(users)).
		Int("synced", r.Synced).
		Int("skipped", r.Skipped).
		Int("failed", r.Failed).
		Msg("refresh round complete")
	return r, nil
}

const (
	outcomeFailed = iota
	outcomeSynced
	outcomeSkipped
)

func (s *Scheduler) refresh(ctx context.Context, user db.User) int {
	result, err := s.syncer.SyncUser(ctx, user.ID, false)
	switch {
	case errors.Is(err, sync.ErrSyncTooRecent):
		return outcomeSkipped
	case err != nil:
		logging.Warn().Err(err).Int64("user_id", user.ID).Msg("refresh failed")
		return outcomeFailed
	}
	logging.Debug().
		Int64("user_id", user.ID).
		Int("added", result.Added).
		Int("removed", result.Removed).
		Msg("user refreshed")
	return outcomeSynced
}
