package lastfm

import (
	"strconv"
	"time"
)

// Response is the outcome of a Last.fm call. Content is only meaningful
// when Success is true; otherwise Err carries the reason.
type Response[T any] struct {
	Success bool
	Content T
	Err     error
}

// Ok wraps a successful result.
func Ok[T any](content T) Response[T] {
	return Response[T]{Success: true, Content: content}
}

// Fail wraps a failed call.
func Fail[T any](err error) Response[T] {
	return Response[T]{Err: err}
}

// RecentTrack is one entry of a user's scrobble feed.
type RecentTrack struct {
	ArtistName string
	AlbumName  string // empty when Last.fm has no album
	TrackName  string
	PlayedAt   *time.Time // nil for the currently playing track
	NowPlaying bool
}

// TopTrack is a track with its playcount over a period.
type TopTrack struct {
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Playcount  int    `json:"playcount"`
}

// TopAlbum is an album with its playcount over a period.
type TopAlbum struct {
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Playcount  int    `json:"playcount"`
}

// TopArtist is an artist with its playcount over a period.
type TopArtist struct {
	Name      string `json:"name"`
	Playcount int    `json:"playcount"`
}

// Tag represents a Last.fm tag with popularity count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
	URL   string `json:"url"`
}

// textField is the {"#text": ...} shape Last.fm uses for nested names.
type textField struct {
	MBID string `json:"mbid"`
	Text string `json:"#text"`
}

// recentTracksResponse is the JSON response for user.getrecenttracks.
type recentTracksResponse struct {
	RecentTracks struct {
		Track []apiRecentTrack `json:"track"`
		Attr  struct {
			User       string `json:"user"`
			Page       string `json:"page"`
			PerPage    string `json:"perPage"`
			TotalPages string `json:"totalPages"`
			Total      string `json:"total"`
		} `json:"@attr"`
	} `json:"recenttracks"`
}

type apiRecentTrack struct {
	Artist textField `json:"artist"`
	Album  textField `json:"album"`
	Name   string    `json:"name"`
	Date   *struct {
		UTS  string `json:"uts"`
		Text string `json:"#text"`
	} `json:"date,omitempty"`
	Attr *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr,omitempty"`
}

func (t apiRecentTrack) toRecentTrack() RecentTrack {
	track := RecentTrack{
		ArtistName: t.Artist.Text,
		AlbumName:  t.Album.Text,
		TrackName:  t.Name,
		NowPlaying: t.Attr != nil && t.Attr.NowPlaying == "true",
	}
	if t.Date != nil {
		if uts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
			playedAt := time.Unix(uts, 0).UTC()
			track.PlayedAt = &playedAt
		}
	}
	return track
}

// trackChartResponse is the JSON response for user.getweeklytrackchart.
type trackChartResponse struct {
	Chart struct {
		Track []struct {
			Artist    textField `json:"artist"`
			Name      string    `json:"name"`
			Playcount int       `json:"playcount,string"`
		} `json:"track"`
	} `json:"weeklytrackchart"`
}

// albumChartResponse is the JSON response for user.getweeklyalbumchart.
type albumChartResponse struct {
	Chart struct {
		Album []struct {
			Artist    textField `json:"artist"`
			Name      string    `json:"name"`
			Playcount int       `json:"playcount,string"`
		} `json:"album"`
	} `json:"weeklyalbumchart"`
}

// artistChartResponse is the JSON response for user.getweeklyartistchart.
type artistChartResponse struct {
	Chart struct {
		Artist []struct {
			Name      string `json:"name"`
			Playcount int    `json:"playcount,string"`
		} `json:"artist"`
	} `json:"weeklyartistchart"`
}

// artistTagsResponse is the JSON response for artist.getTopTags.
type artistTagsResponse struct {
	TopTags struct {
		Tag  []Tag `json:"tag"`
		Attr struct {
			Artist string `json:"artist"`
		} `json:"@attr"`
	} `json:"toptags"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
