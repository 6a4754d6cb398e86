package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/metrics"
)

// OverlapBuffer is how many stored plays beyond the snapshot size are
// fetched for comparison, to absorb upstream reordering near the boundary.
const OverlapBuffer = 250

// PlayStore is the subset of db.PlayRepository the reconciler needs.
type PlayStore interface {
	Recent(ctx context.Context, userID int64, limit int) ([]db.Play, error)
	DeleteAt(ctx context.Context, userID int64, playedAt []time.Time) error
	BulkInsert(ctx context.Context, plays []db.Play) error
	ReplaceAll(ctx context.Context, userID int64, plays []db.Play) error
}

// Reconciler applies upstream snapshots to the play store.
// Calls for the same user must not run concurrently; Service serializes them.
type Reconciler struct {
	plays   PlayStore
	metrics metrics.Recorder
}

// NewReconciler creates a Reconciler. A nil recorder disables metrics.
func NewReconciler(plays PlayStore, recorder metrics.Recorder) *Reconciler {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Reconciler{plays: plays, metrics: recorder}
}

// Reconcile diffs snapshot against the user's stored plays, deletes retracted
// plays and then inserts new ones. A store failure aborts and is returned.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, snapshot []lastfm.RecentTrack) (*Result, error) {
	plays, stats := Normalize(snapshot, userID)

	existing, err := r.plays.Recent(ctx, userID, len(plays)+OverlapBuffer)
	if err != nil {
		return nil, fmt.Errorf("fetching stored plays: %w", err)
	}

	result, beforeWindow := Diff(plays, existing)
	stats.BeforeWindow = beforeWindow
	r.recordDropped(userID, stats)

	removedAt := make([]time.Time, len(result.Removed))
	for i, p := range result.Removed {
		removedAt[i] = p.PlayedAt
	}
	if err := r.plays.DeleteAt(ctx, userID, removedAt); err != nil {
		return nil, fmt.Errorf("removing retracted plays: %w", err)
	}

	if err := r.plays.BulkInsert(ctx, result.Added); err != nil {
		return nil, fmt.Errorf("inserting new plays: %w", err)
	}

	r.metrics.PlaysSynced(len(result.Added), len(result.Removed))
	logging.Info().
		Int64("user_id", userID).
		Int("added", len(result.Added)).
		Int("removed", len(result.Removed)).
		Msg("reconciled plays")

	return &result, nil
}

// Backfill replaces the user's entire stored history with snapshot.
func (r *Reconciler) Backfill(ctx context.Context, userID int64, snapshot []lastfm.RecentTrack) (*Result, error) {
	plays, stats := Normalize(snapshot, userID)
	r.recordDropped(userID, stats)

	if err := r.plays.ReplaceAll(ctx, userID, plays); err != nil {
		return nil, fmt.Errorf("replacing play history: %w", err)
	}

	r.metrics.PlaysSynced(len(plays), 0)
	logging.Info().
		Int64("user_id", userID).
		Int("added", len(plays)).
		Msg("backfilled plays")

	return &Result{Added: plays}, nil
}

func (r *Reconciler) recordDropped(userID int64, stats Stats) {
	for reason, n := range stats.ByReason() {
		r.metrics.PlaysDropped(reason, n)
		// now_playing is expected on almost every fetch
		event := logging.Info()
		if reason == ReasonNowPlaying {
			event = logging.Debug()
		}
		event.
			Int64("user_id", userID).
			Str("reason", reason).
			Int("count", n).
			Msg("dropped snapshot entries")
	}
}
