package streaks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/metrics"
)

// SaveThreshold is the count one dimension must reach for a streak to be saved.
const SaveThreshold = 25

// ErrUpstream is returned when the most recent track cannot be fetched.
var ErrUpstream = errors.New("fetching most recent track failed")

// SaveStatus is the outcome of Save.
type SaveStatus string

const (
	StatusBelowThreshold SaveStatus = "below_threshold"
	StatusCreated        SaveStatus = "created"
	StatusUpdated        SaveStatus = "updated"
)

// Message is the user-facing description of the outcome.
func (s SaveStatus) Message() string {
	switch s {
	case StatusBelowThreshold:
		return fmt.Sprintf("Only streaks with %d plays or higher are saved.", SaveThreshold)
	case StatusCreated:
		return "Streak has been saved!"
	case StatusUpdated:
		return "Saved streak has been updated!"
	default:
		return ""
	}
}

// StreakStore is the subset of db.StreakRepository the service needs.
type StreakStore interface {
	GetByStart(ctx context.Context, userID int64, startedAt time.Time) (*db.Streak, error)
	Create(ctx context.Context, streak *db.Streak) error
	Update(ctx context.Context, streak *db.Streak) error
	ListForUser(ctx context.Context, userID int64) ([]db.Streak, error)
}

// HistoryStore supplies a user's full play history, newest first.
type HistoryStore interface {
	AllDescending(ctx context.Context, userID int64) ([]db.Play, error)
}

// EventSource supplies a user's recent scrobbles, newest first.
type EventSource interface {
	RecentTracks(ctx context.Context, username string, limit int) lastfm.Response[[]lastfm.RecentTrack]
}

// Service computes and saves streaks.
type Service struct {
	streaks StreakStore
	plays   HistoryStore
	source  EventSource
	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

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

// NewService creates a streak service.
func NewService(streaks StreakStore, plays HistoryStore, source EventSource, opts ...Option) *Service {
	s := &Service{
		streaks: streaks,
		plays:   plays,
		source:  source,
		metrics: metrics.Noop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current computes the user's active streak against the track Last.fm
// reports as most recent, including one that is still playing. For a track
// still playing the newest stored play is skipped as well (see Detect).
// Returns nil when the user has no stored plays.
func (s *Service) Current(ctx context.Context, user *db.User) (*db.Streak, error) {
	resp := s.source.RecentTracks(ctx, user.LastFMUsername, 1)
	if !resp.Success {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, resp.Err)
	}
	if len(resp.Content) == 0 {
		return nil, nil
	}

	history, err := s.plays.AllDescending(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("getting play history: %w", err)
	}
	if len(history) == 0 {
		return nil, nil
	}

	now := s.now()
	return Detect(user.ID, history, seed(resp.Content[0], user.ID, now), now), nil
}

// Save persists streak when any dimension reaches SaveThreshold. A streak
// with the same user and start time is updated in place.
func (s *Service) Save(ctx context.Context, streak *db.Streak) (SaveStatus, error) {
	if Longest(streak) < SaveThreshold {
		s.metrics.StreakSaved(string(StatusBelowThreshold))
		return StatusBelowThreshold, nil
	}

	existing, err := s.streaks.GetByStart(ctx, streak.UserID, streak.StartedAt)
	if errors.Is(err, db.ErrNotFound) {
		if err := s.streaks.Create(ctx, streak); err != nil {
			return "", fmt.Errorf("creating streak: %w", err)
		}
		s.metrics.StreakSaved(string(StatusCreated))
		logging.Info().
			Int64("user_id", streak.UserID).
			Int("longest", Longest(streak)).
			Msg("saved streak")
		return StatusCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up streak: %w", err)
	}

	existing.EndedAt = streak.EndedAt
	existing.ArtistPlaycount = streak.ArtistPlaycount
	existing.AlbumPlaycount = streak.AlbumPlaycount
	existing.TrackPlaycount = streak.TrackPlaycount
	if err := s.streaks.Update(ctx, existing); err != nil {
		return "", fmt.Errorf("updating streak: %w", err)
	}
	streak.ID = existing.ID
	s.metrics.StreakSaved(string(StatusUpdated))
	return StatusUpdated, nil
}

// List returns the user's saved streaks, longest artist streak first.
func (s *Service) List(ctx context.Context, userID int64) ([]db.Streak, error) {
	streaks, err := s.streaks.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing streaks: %w", err)
	}
	return streaks, nil
}

// seed converts the upstream most recent track. A track still playing has
// no timestamp yet and is stamped now.
func seed(t lastfm.RecentTrack, userID int64, now time.Time) db.Play {
	play := db.Play{
		UserID:     userID,
		ArtistName: t.ArtistName,
		AlbumName:  nonEmpty(t.AlbumName),
		TrackName:  t.TrackName,
		PlayedAt:   now,
	}
	if t.PlayedAt != nil {
		play.PlayedAt = *t.PlayedAt
	}
	return play
}
