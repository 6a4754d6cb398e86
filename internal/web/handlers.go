package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/overview"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
	"github.com/justestif/go-scrobble-ledger/internal/streaks"
	"github.com/justestif/go-scrobble-ledger/internal/sync"
)

// Default windows when ?days= is absent.
const (
	defaultTopDays   = 7
	defaultDailyDays = 7
)

// UserStore looks users up.
type UserStore interface {
	Get(ctx context.Context, id int64) (*db.User, error)
}

// Syncer refreshes one user's plays.
type Syncer interface {
	SyncUser(ctx context.Context, userID int64, force bool) (*sync.SyncResult, error)
}

// StreakService detects and persists streaks.
type StreakService interface {
	Current(ctx context.Context, user *db.User) (*db.Streak, error)
	Save(ctx context.Context, streak *db.Streak) (streaks.SaveStatus, error)
	List(ctx context.Context, userID int64) ([]db.Streak, error)
}

// OverviewService builds per-user views.
type OverviewService interface {
	Daily(ctx context.Context, userID int64, days int) (*overview.Daily, error)
	Year(ctx context.Context, user *db.User, year int) (*overview.Year, error)
	TopArtists(ctx context.Context, userID int64, days int) ([]rank.Artist, error)
	TopAlbums(ctx context.Context, userID int64, days int) ([]rank.Album, error)
	TopTracks(ctx context.Context, userID int64, days int) ([]rank.Track, error)
	TopTracksForArtist(ctx context.Context, userID int64, days int, artist string) ([]rank.Track, error)
	WeekTrackPlaycount(ctx context.Context, userID int64, artist, track string) (int, error)
	WeekAlbumPlaycount(ctx context.Context, userID int64, artist, album string) (int, error)
	ArtistPlaycount(ctx context.Context, userID int64, artist string, days int) (int, error)
}

// GuildService ranks guild-wide plays.
type GuildService interface {
	TopArtists(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Artist, error)
	TopAlbums(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Album, error)
	TopTracks(ctx context.Context, guildID int64, days int, metric rank.Metric, artist string) ([]rank.Track, error)
	TimeLeaderboardPlays(ctx context.Context, guildID int64, now time.Time) ([]db.Play, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	Users    UserStore
	Sync     Syncer
	Streaks  StreakService
	Overview OverviewService
	Guilds   GuildService
	DB       Pinger
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		if err := h.deps.DB.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync handles POST /users/{userID}/sync[?force=true].
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := h.deps.Sync.SyncUser(r.Context(), userID, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type streakJSON struct {
	ID              string    `json:"id,omitempty"`
	Artist          *string   `json:"artist,omitempty"`
	Album           *string   `json:"album,omitempty"`
	Track           *string   `json:"track,omitempty"`
	ArtistPlaycount int       `json:"artist_playcount"`
	AlbumPlaycount  int       `json:"album_playcount"`
	TrackPlaycount  int       `json:"track_playcount"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Text            string    `json:"text"`
}

func toStreakJSON(s *db.Streak, includeStart bool) streakJSON {
	out := streakJSON{
		Artist:          s.ArtistName,
		Album:           s.AlbumName,
		Track:           s.TrackName,
		ArtistPlaycount: s.ArtistPlaycount,
		AlbumPlaycount:  s.AlbumPlaycount,
		TrackPlaycount:  s.TrackPlaycount,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		Text:            streaks.Text(s, includeStart),
	}
	if s.ID != uuid.Nil {
		out.ID = s.ID.String()
	}
	return out
}

// user resolves the {userID} path parameter, writing the error response on failure.
func (h *Handlers) user(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	user, err := h.deps.Users.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return user, true
}

// CurrentStreak handles GET /users/{userID}/streak.
func (h *Handlers) CurrentStreak(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	streak, err := h.deps.Streaks.Current(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if streak == nil {
		writeError(w, http.StatusNotFound, streaks.Text(nil, false))
		return
	}
	writeJSON(w, http.StatusOK, toStreakJSON(streak, true))
}

// SaveStreak handles POST /users/{userID}/streak.
func (h *Handlers) SaveStreak(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	streak, err := h.deps.Streaks.Current(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if streak == nil {
		writeError(w, http.StatusNotFound, streaks.Text(nil, false))
		return
	}

	status, err := h.deps.Streaks.Save(r.Context(), streak)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code := http.StatusOK
	if status == streaks.StatusCreated {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"message": status.Message(),
		"streak":  toStreakJSON(streak, true),
	})
}

// ListStreaks handles GET /users/{userID}/streaks.
func (h *Handlers) ListStreaks(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.deps.Streaks.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]streakJSON, len(saved))
	for i := range saved {
		out[i] = toStreakJSON(&saved[i], true)
	}
	writeJSON(w, http.StatusOK, out)
}

// UserTop handles GET /users/{userID}/top/{kind}?days=[&artist=].
func (h *Handlers) UserTop(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindow(r, defaultTopDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var result any
	switch chi.URLParam(r, "kind") {
	case "artists":
		result, err = h.deps.Overview.TopArtists(ctx, userID, window.Days)
	case "albums":
		result, err = h.deps.Overview.TopAlbums(ctx, userID, window.Days)
	case "tracks":
		if artist := r.URL.Query().Get("artist"); artist != "" {
			result, err = h.deps.Overview.TopTracksForArtist(ctx, userID, window.Days, artist)
		} else {
			result, err = h.deps.Overview.TopTracks(ctx, userID, window.Days)
		}
	default:
		writeError(w, http.StatusNotFound, "unknown top list")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Playcount handles GET /users/{userID}/playcount?artist=[&track=|&album=|&days=].
// Track and album counts always cover the last week.
func (h *Handlers) Playcount(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	artist := q.Get("artist")
	if artist == "" {
		writeError(w, http.StatusBadRequest, "artist is required")
		return
	}

	ctx := r.Context()
	out := map[string]any{"artist": artist}
	var count int
	switch {
	case q.Get("track") != "":
		out["track"], out["days"] = q.Get("track"), overview.WeekDays
		count, err = h.deps.Overview.WeekTrackPlaycount(ctx, userID, artist, q.Get("track"))
	case q.Get("album") != "":
		out["album"], out["days"] = q.Get("album"), overview.WeekDays
		count, err = h.deps.Overview.WeekAlbumPlaycount(ctx, userID, artist, q.Get("album"))
	default:
		window, werr := parseWindow(r, defaultTopDays)
		if werr != nil {
			writeError(w, http.StatusBadRequest, werr.Error())
			return
		}
		out["days"] = window.Days
		count, err = h.deps.Overview.ArtistPlaycount(ctx, userID, artist, window.Days)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out["playcount"] = count
	writeJSON(w, http.StatusOK, out)
}

// Daily handles GET /users/{userID}/daily?days=.
func (h *Handlers) Daily(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindow(r, defaultDailyDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	daily, err := h.deps.Overview.Daily(r.Context(), userID, window.Days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if daily == nil {
		writeError(w, http.StatusNotFound, "no plays in range")
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

// Year handles GET /users/{userID}/year/{year}.
func (h *Handlers) Year(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2002 || year > time.Now().Year() {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	ov, err := h.deps.Overview.Year(r.Context(), user, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// GuildTop handles GET /guilds/{guildID}/top/{kind}?days=&order=&artist=.
func (h *Handlers) GuildTop(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindow(r, defaultTopDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metric := rank.Listeners
	if order := r.URL.Query().Get("order"); order != "" {
		if metric, err = rank.ParseMetric(order); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	artist := r.URL.Query().Get("artist")

	ctx := r.Context()
	var result any
	switch chi.URLParam(r, "kind") {
	case "artists":
		result, err = h.deps.Guilds.TopArtists(ctx, guildID, window.Days, metric, artist)
	case "albums":
		result, err = h.deps.Guilds.TopAlbums(ctx, guildID, window.Days, metric, artist)
	case "tracks":
		result, err = h.deps.Guilds.TopTracks(ctx, guildID, window.Days, metric, artist)
	default:
		writeError(w, http.StatusNotFound, "unknown top list")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GuildLeaderboardPlays handles GET /guilds/{guildID}/leaderboard/plays.
func (h *Handlers) GuildLeaderboardPlays(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathID(r, "guildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plays, err := h.deps.Guilds.TimeLeaderboardPlays(r.Context(), guildID, time.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]playJSON, len(plays))
	for i, p := range plays {
		out[i] = playJSON{UserID: p.UserID, Artist: p.ArtistName, Album: p.AlbumName, Track: p.TrackName, PlayedAt: p.PlayedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

type playJSON struct {
	UserID   int64     `json:"user_id"`
	Artist   string    `json:"artist"`
	Album    *string   `json:"album,omitempty"`
	Track    string    `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}
