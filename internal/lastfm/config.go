// Package lastfm fetches top tracks for a Last.fm tag.
package lastfm

import (
	"errors"
	"time"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key (LASTFM_API_KEY)")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Validate reports ErrMissingAPIKey when the key is empty.
func (c *Config) Validate() error {
	if c == nil || c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
