package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	baseURL   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "scrobble-ledger/1.0"

	// maxPageSize is the largest page user.getrecenttracks serves.
	maxPageSize = 200
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidParams is returned for unknown users and malformed requests.
	ErrInvalidParams = errors.New("invalid parameters")
)

// Client is a rate limited Last.fm API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		// Last.fm allows roughly 5 requests per second per key
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// RecentTracks fetches up to limit of the user's most recent scrobbles, newest first.
// A currently playing track, if any, is included and flagged with NowPlaying.
func (c *Client) RecentTracks(ctx context.Context, username string, limit int) Response[[]RecentTrack] {
	if username == "" {
		return Fail[[]RecentTrack](fmt.Errorf("%w: username cannot be empty", ErrInvalidParams))
	}
	if limit <= 0 {
		limit = maxPageSize
	}

	tracks := make([]RecentTrack, 0, limit)
	for page := 1; len(tracks) < limit; page++ {
		pageSize := min(limit-len(tracks), maxPageSize)
		params := url.Values{
			"method":  {"user.getrecenttracks"},
			"user":    {username},
			"limit":   {strconv.Itoa(pageSize)},
			"page":    {strconv.Itoa(page)},
			"format":  {"json"},
			"api_key": {c.apiKey},
		}

		body, err := c.doRequest(ctx, params)
		if err != nil {
			return Fail[[]RecentTrack](fmt.Errorf("fetching recent tracks: %w", err))
		}

		var resp recentTracksResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Fail[[]RecentTrack](fmt.Errorf("parsing recent tracks response: %w", err))
		}

		for _, t := range resp.RecentTracks.Track {
			tracks = append(tracks, t.toRecentTrack())
		}

		totalPages, _ := strconv.Atoi(resp.RecentTracks.Attr.TotalPages)
		if len(resp.RecentTracks.Track) == 0 || page >= totalPages {
			break
		}
	}

	return Ok(tracks)
}

// TopTracks fetches the user's top tracks scrobbled between from and to.
func (c *Client) TopTracks(ctx context.Context, username string, from, to time.Time, limit int) Response[[]TopTrack] {
	body, err := c.doRequest(ctx, chartParams("user.getweeklytrackchart", username, from, to, c.apiKey))
	if err != nil {
		return Fail[[]TopTrack](fmt.Errorf("fetching top tracks: %w", err))
	}

	var resp trackChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail[[]TopTrack](fmt.Errorf("parsing top tracks response: %w", err))
	}

	tracks := make([]TopTrack, 0, len(resp.Chart.Track))
	for _, t := range resp.Chart.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, ArtistName: t.Artist.Text, Playcount: t.Playcount})
	}
	return Ok(truncate(tracks, limit))
}

// TopAlbums fetches the user's top albums scrobbled between from and to.
func (c *Client) TopAlbums(ctx context.Context, username string, from, to time.Time, limit int) Response[[]TopAlbum] {
	body, err := c.doRequest(ctx, chartParams("user.getweeklyalbumchart", username, from, to, c.apiKey))
	if err != nil {
		return Fail[[]TopAlbum](fmt.Errorf("fetching top albums: %w", err))
	}

	var resp albumChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail[[]TopAlbum](fmt.Errorf("parsing top albums response: %w", err))
	}

	albums := make([]TopAlbum, 0, len(resp.Chart.Album))
	for _, a := range resp.Chart.Album {
		albums = append(albums, TopAlbum{Name: a.Name, ArtistName: a.Artist.Text, Playcount: a.Playcount})
	}
	return Ok(truncate(albums, limit))
}

// TopArtists fetches the user's top artists scrobbled between from and to.
func (c *Client) TopArtists(ctx context.Context, username string, from, to time.Time, limit int) Response[[]TopArtist] {
	body, err := c.doRequest(ctx, chartParams("user.getweeklyartistchart", username, from, to, c.apiKey))
	if err != nil {
		return Fail[[]TopArtist](fmt.Errorf("fetching top artists: %w", err))
	}

	var resp artistChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fail[[]TopArtist](fmt.Errorf("parsing top artists response: %w", err))
	}

	artists := make([]TopArtist, 0, len(resp.Chart.Artist))
	for _, a := range resp.Chart.Artist {
		artists = append(artists, TopArtist{Name: a.Name, Playcount: a.Playcount})
	}
	return Ok(truncate(artists, limit))
}

// ArtistTags fetches an artist's top tags. Returns an empty slice (not nil)
// when the artist has none.
func (c *Client) ArtistTags(ctx context.Context, artist string) ([]Tag, error) {
	params := url.Values{
		"method":      {"artist.getTopTags"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching artist tags: %w", err)
	}

	var resp artistTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist tags response: %w", err)
	}

	tags := resp.TopTags.Tag
	if tags == nil {
		tags = []Tag{}
	}
	return tags, nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries up to 3 times with exponential backoff (1s, 2s, 4s).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	delays := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error

	for attempt := 0; attempt <= len(delays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		// Check if we should retry
		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		// Non-retryable error
		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrInvalidParams, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

func chartParams(method, username string, from, to time.Time, apiKey string) url.Values {
	return url.Values{
		"method":  {method},
		"user":    {username},
		"from":    {strconv.FormatInt(from.Unix(), 10)},
		"to":      {strconv.FormatInt(to.Unix(), 10)},
		"format":  {"json"},
		"api_key": {apiKey},
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
