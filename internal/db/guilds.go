package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GuildRepository reads plays across the members of a guild.
//
// Only members that count towards guild aggregates are included: not a bot,
// not blocked from aggregation in that guild, and whitelisted when the guild
// uses a whitelist.
type GuildRepository struct {
	pool *pgxpool.Pool
}

const guildPlaysQuery = `
		SELECT up.user_id, up.artist_name, up.album_name, up.track_name, up.time_played
		FROM user_play_ts AS up
		INNER JOIN users AS u ON up.user_id = u.user_id
		INNER JOIN guild_users AS gu ON gu.user_id = u.user_id
		WHERE gu.guild_id = $1
			AND gu.bot IS NOT TRUE
			AND NOT up.user_id = ANY(
				SELECT user_id FROM guild_blocked_users
				WHERE blocked_from_who_knows = true AND guild_id = $1
			)
			AND (gu.who_knows_whitelisted OR gu.who_knows_whitelisted IS NULL)
			AND up.time_played > $2`

// Plays retrieves the plays of all counted guild members after since.
func (r *GuildRepository) Plays(ctx context.Context, guildID int64, since time.Time) ([]Play, error) {
	rows, err := r.pool.Query(ctx, guildPlaysQuery, guildID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying guild plays: %w", err)
	}
	return scanPlays(rows)
}

// PlaysBetween retrieves the plays of all counted guild members with from < time_played < to.
func (r *GuildRepository) PlaysBetween(ctx context.Context, guildID int64, from, to time.Time) ([]Play, error) {
	query := guildPlaysQuery + ` AND up.time_played < $3`
	rows, err := r.pool.Query(ctx, query, guildID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying guild plays in window: %w", err)
	}
	return scanPlays(rows)
}
