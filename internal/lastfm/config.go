// Package lastfm provides the Last.fm API integration: the recent scrobble
// feed, period top lists and tags.
package lastfm

import (
	"errors"
)

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string
}

// Validate reports ErrMissingAPIKey when the API key is empty.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
