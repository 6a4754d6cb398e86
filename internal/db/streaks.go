package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StreakRepository handles the user_streaks ledger.
type StreakRepository struct {
	pool *pgxpool.Pool
}

const streakColumns = `user_streak_id, user_id, artist_name, album_name, track_name,
		artist_playcount, album_playcount, track_playcount, streak_started, streak_ended`

// GetByStart retrieves the streak a user started at exactly startedAt.
func (r *StreakRepository) GetByStart(ctx context.Context, userID int64, startedAt time.Time) (*Streak, error) {
	query := `SELECT ` + streakColumns + `
		FROM user_streaks
		WHERE user_id = $1 AND streak_started = $2
	`
	streak, err := scanStreak(r.pool.QueryRow(ctx, query, userID, startedAt.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying streak: %w", err)
	}
	return streak, nil
}

// Create inserts a new streak, assigning an ID when it has none.
func (r *StreakRepository) Create(ctx context.Context, streak *Streak) error {
	query := `
		INSERT INTO user_streaks (` + streakColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if streak.ID == uuid.Nil {
		streak.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, query,
		streak.ID,
		streak.UserID,
		streak.ArtistName,
		streak.AlbumName,
		streak.TrackName,
		streak.ArtistPlaycount,
		streak.AlbumPlaycount,
		streak.TrackPlaycount,
		streak.StartedAt.UTC(),
		streak.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting streak: %w", err)
	}
	return nil
}

// Update refreshes the end time and playcounts of an existing streak.
func (r *StreakRepository) Update(ctx context.Context, streak *Streak) error {
	query := `
		UPDATE user_streaks
		SET streak_ended = $2, artist_playcount = $3, album_playcount = $4, track_playcount = $5
		WHERE user_streak_id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		streak.ID,
		streak.EndedAt.UTC(),
		streak.ArtistPlaycount,
		streak.AlbumPlaycount,
		streak.TrackPlaycount,
	)
	if err != nil {
		return fmt.Errorf("updating streak: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser retrieves all saved streaks for a user, longest artist streak first.
func (r *StreakRepository) ListForUser(ctx context.Context, userID int64) ([]Streak, error) {
	query := `SELECT ` + streakColumns + `
		FROM user_streaks
		WHERE user_id = $1
		ORDER BY artist_playcount DESC NULLS LAST
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user streaks: %w", err)
	}
	defer rows.Close()

	var streaks []Streak
	for rows.Next() {
		streak, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning streak: %w", err)
		}
		streaks = append(streaks, *streak)
	}
	return streaks, rows.Err()
}

func scanStreak(row pgx.Row) (*Streak, error) {
	var streak Streak
	var artistPlays, albumPlays, trackPlays *int
	if err := row.Scan(
		&streak.ID,
		&streak.UserID,
		&streak.ArtistName,
		&streak.AlbumName,
		&streak.TrackName,
		&artistPlays,
		&albumPlays,
		&trackPlays,
		&streak.StartedAt,
		&streak.EndedAt,
	); err != nil {
		return nil, err
	}
	streak.ArtistPlaycount = deref(artistPlays)
	streak.AlbumPlaycount = deref(albumPlays)
	streak.TrackPlaycount = deref(trackPlays)
	streak.StartedAt = streak.StartedAt.UTC()
	streak.EndedAt = streak.EndedAt.UTC()
	return &streak, nil
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
