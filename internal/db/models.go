package db

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user with a linked Last.fm account.
type User struct {
	ID               int64
	LastFMUsername   string
	RegisteredLastFM *time.Time // nullable
	LastSyncAt       *time.Time // nullable
}

// Play is a single scrobble stored in the time series.
// Unique per (UserID, PlayedAt).
type Play struct {
	UserID     int64
	ArtistName string
	AlbumName  *string // nullable
	TrackName  string
	PlayedAt   time.Time
}

// Album returns the album name, or "" when it is unknown.
func (p Play) Album() string {
	if p.AlbumName == nil {
		return ""
	}
	return *p.AlbumName
}

// Streak is a saved run of consecutive plays.
// Unique per (UserID, StartedAt).
type Streak struct {
	ID              uuid.UUID
	UserID          int64
	ArtistName      *string
	AlbumName       *string
	TrackName       *string
	ArtistPlaycount int
	AlbumPlaycount  int
	TrackPlaycount  int
	StartedAt       time.Time
	EndedAt         time.Time
}
