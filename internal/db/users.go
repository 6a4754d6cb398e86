package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user database operations.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT user_id, user_name_last_fm, registered_last_fm, last_sync_at
		FROM users
		WHERE user_id = $1
	`
	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.LastFMUsername,
		&user.RegisteredLastFM,
		&user.LastSyncAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// ListActive retrieves all users with a linked Last.fm account, least recently synced first.
func (r *UserRepository) ListActive(ctx context.Context) ([]User, error) {
	query := `
		SELECT user_id, user_name_last_fm, registered_last_fm, last_sync_at
		FROM users
		WHERE user_name_last_fm IS NOT NULL AND user_name_last_fm <> ''
		ORDER BY last_sync_at ASC NULLS FIRST
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying active users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(
			&user.ID,
			&user.LastFMUsername,
			&user.RegisteredLastFM,
			&user.LastSyncAt,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateLastSync updates the last sync timestamp for a user.
func (r *UserRepository) UpdateLastSync(ctx context.Context, id int64, syncTime time.Time) error {
	query := `
		UPDATE users
		SET last_sync_at = $2
		WHERE user_id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, syncTime)
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
