package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// playColumns is the column order used by BulkInsert.
var playColumns = []string{"track_name", "album_name", "artist_name", "time_played", "user_id"}

// PlayRepository handles the user_play_ts time series.
type PlayRepository struct {
	pool *pgxpool.Pool
}

// Recent retrieves the most recent plays for a user, newest first.
func (r *PlayRepository) Recent(ctx context.Context, userID int64, limit int) ([]Play, error) {
	query := `
		SELECT user_id, artist_name, album_name, track_name, time_played
		FROM user_play_ts
		WHERE user_id = $1
		ORDER BY time_played DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent plays: %w", err)
	}
	return scanPlays(rows)
}

// AllDescending retrieves a user's full play history, newest first.
func (r *PlayRepository) AllDescending(ctx context.Context, userID int64) ([]Play, error) {
	query := `
		SELECT user_id, artist_name, album_name, track_name, time_played
		FROM user_play_ts
		WHERE user_id = $1
		ORDER BY time_played DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying play history: %w", err)
	}
	return scanPlays(rows)
}

// Between retrieves a user's plays with from < time_played <= to, newest first.
func (r *PlayRepository) Between(ctx context.Context, userID int64, from, to time.Time) ([]Play, error) {
	query := `
		SELECT user_id, artist_name, album_name, track_name, time_played
		FROM user_play_ts
		WHERE user_id = $1 AND time_played > $2 AND time_played <= $3
		ORDER BY time_played DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying plays in window: %w", err)
	}
	return scanPlays(rows)
}

// DeleteAt removes a user's plays at the given timestamps.
func (r *PlayRepository) DeleteAt(ctx context.Context, userID int64, playedAt []time.Time) error {
	if len(playedAt) == 0 {
		return nil
	}

	query := `DELETE FROM user_play_ts WHERE user_id = $1 AND time_played = ANY($2::timestamptz[])`
	_, err := r.pool.Exec(ctx, query, userID, playedAt)
	if err != nil {
		return fmt.Errorf("deleting plays: %w", err)
	}
	return nil
}

// BulkInsert streams plays into user_play_ts using the COPY protocol.
// A single COPY either lands completely or not at all.
func (r *PlayRepository) BulkInsert(ctx context.Context, plays []Play) error {
	if len(plays) == 0 {
		return nil
	}

	if _, err := r.pool.CopyFrom(ctx, pgx.Identifier{"user_play_ts"}, playColumns, copySource(plays)); err != nil {
		return fmt.Errorf("copying plays: %w", err)
	}
	return nil
}

// ReplaceAll deletes every play for a user and copies in the replacement set
// within one transaction.
func (r *PlayRepository) ReplaceAll(ctx context.Context, userID int64, plays []Play) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_play_ts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting all plays: %w", err)
	}

	if len(plays) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"user_play_ts"}, playColumns, copySource(plays)); err != nil {
			return fmt.Errorf("copying plays: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CountTrack counts a user's plays of one track in the (from, to] window.
// Names are compared case-insensitively.
func (r *PlayRepository) CountTrack(ctx context.Context, userID int64, artist, track string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_play_ts
		WHERE user_id = $1 AND time_played > $2 AND time_played <= $3
			AND LOWER(artist_name) = LOWER($4) AND LOWER(track_name) = LOWER($5)
	`
	return r.count(ctx, query, userID, from, to, artist, track)
}

// CountAlbum counts a user's plays of one album in the (from, to] window.
func (r *PlayRepository) CountAlbum(ctx context.Context, userID int64, artist, album string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_play_ts
		WHERE user_id = $1 AND time_played > $2 AND time_played <= $3
			AND LOWER(artist_name) = LOWER($4) AND LOWER(album_name) = LOWER($5)
	`
	return r.count(ctx, query, userID, from, to, artist, album)
}

// CountArtist counts a user's plays of one artist in the (from, to] window.
func (r *PlayRepository) CountArtist(ctx context.Context, userID int64, artist string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_play_ts
		WHERE user_id = $1 AND time_played > $2 AND time_played <= $3
			AND LOWER(artist_name) = LOWER($4)
	`
	return r.count(ctx, query, userID, from, to, artist)
}

func (r *PlayRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return n, nil
}

// copySource adapts plays to the playColumns order, forcing UTC timestamps.
func copySource(plays []Play) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(plays), func(i int) ([]any, error) {
		p := plays[i]
		return []any{p.TrackName, p.AlbumName, p.ArtistName, p.PlayedAt.UTC(), p.UserID}, nil
	})
}

// scanPlays reads play rows and closes them.
func scanPlays(rows pgx.Rows) ([]Play, error) {
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var play Play
		if err := rows.Scan(
			&play.UserID,
			&play.ArtistName,
			&play.AlbumName,
			&play.TrackName,
			&play.PlayedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning play: %w", err)
		}
		play.PlayedAt = play.PlayedAt.UTC()
		plays = append(plays, play)
	}
	return plays, rows.Err()
}
