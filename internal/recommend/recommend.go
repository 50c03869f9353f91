// Package recommend turns an emotion into something to listen to: catalog
// playlists when the streaming service answers, Last.fm tag tracks when it
// does not, and the static fallback songs otherwise.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/lastfm"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/metrics"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/vibes"
)

// Source indicates where a recommendation came from.
type Source string

const (
	// SourceCatalog means playlists came from the streaming catalog.
	SourceCatalog Source = "catalog"
	// SourceLastFM means songs came from Last.fm tag top tracks.
	SourceLastFM Source = "lastfm"
	// SourceFallback means the static songs of the vibe table were used.
	SourceFallback Source = "fallback"
)

// DefaultLimit is the number of playlists or songs requested.
const DefaultLimit = 5

// ErrNoPlaylists is returned by PlayForEmotion when the catalog offered
// nothing to play.
var ErrNoPlaylists = errors.New("no playlists to play")

// Searcher finds catalog playlists for an emotion.
type Searcher interface {
	SearchForEmotion(ctx context.Context, e emotion.Type, limit int) ([]playback.Playlist, error)
}

// Player starts one of a set of playlists.
type Player interface {
	PlayRandomPlaylist(ctx context.Context, playlists []playback.Playlist) (playback.Playlist, error)
}

// TrackFetcher abstracts the Last.fm client for testing.
type TrackFetcher interface {
	TopTracks(ctx context.Context, tag string, limit int) ([]lastfm.Track, error)
}

// Recommendation is what to play for an emotion.
type Recommendation struct {
	Emotion     emotion.Type        `json:"emotion"`
	Vibe        string              `json:"vibe"`
	Icon        string              `json:"icon"`
	Source      Source              `json:"source"`
	Playlists   []playback.Playlist `json:"playlists,omitempty"`
	Songs       []vibes.Song        `json:"songs,omitempty"`
	SearchError string              `json:"search_error,omitempty"`
}

// Service builds recommendations.
type Service struct {
	searcher Searcher
	player   Player
	tracks   TrackFetcher
	limit    int
}

// Option configures a Service.
type Option func(*Service)

// WithTrackFetcher enables the Last.fm step.
func WithTrackFetcher(f TrackFetcher) Option {
	return func(s *Service) { s.tracks = f }
}

// WithLimit sets how many playlists or songs are requested.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// New creates a Service. searcher and player may be nil, in which case the
// catalog step is skipped.
func New(searcher Searcher, player Player, opts ...Option) *Service {
	s := &Service{
		searcher: searcher,
		player:   player,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend returns playlists or songs for e. Unknown emotions are treated
// as neutral. It never fails: the vibe table's fallback songs are the last
// resort.
func (s *Service) Recommend(ctx context.Context, e emotion.Type) Recommendation {
	if !e.Valid() {
		e = emotion.Neutral
	}
	mapping := vibes.Lookup(e)
	rec := Recommendation{
		Emotion: e,
		Vibe:    mapping.Vibe,
		Icon:    mapping.Icon,
	}

	if s.searcher != nil {
		playlists, err := s.searcher.SearchForEmotion(ctx, e, s.limit)
		switch {
		case err != nil:
			rec.SearchError = err.Error()
		case len(playlists) > 0:
			rec.Source = SourceCatalog
			rec.Playlists = playlists
			metrics.Recommendations.WithLabelValues(string(rec.Source)).Inc()
			return rec
		}
	}

	if s.tracks != nil && mapping.Tag != "" {
		tracks, err := s.tracks.TopTracks(ctx, mapping.Tag, s.limit)
		if err != nil {
			logging.Warn().Err(err).Str("tag", mapping.Tag).Msg("Last.fm lookup failed")
		} else if len(tracks) > 0 {
			rec.Source = SourceLastFM
			rec.Songs = make([]vibes.Song, 0, len(tracks))
			for _, t := range tracks {
				rec.Songs = append(rec.Songs, vibes.Song{Title: t.Name, Artist: t.Artist, Icon: mapping.Icon})
			}
			metrics.Recommendations.WithLabelValues(string(rec.Source)).Inc()
			return rec
		}
	}

	rec.Source = SourceFallback
	rec.Songs = mapping.FallbackSongs
	metrics.Recommendations.WithLabelValues(string(rec.Source)).Inc()
	return rec
}

// PlayForEmotion recommends for e and plays one of the catalog playlists at
// random. Without catalog playlists it returns the recommendation with
// ErrNoPlaylists.
func (s *Service) PlayForEmotion(ctx context.Context, e emotion.Type) (Recommendation, playback.Playlist, error) {
	rec := s.Recommend(ctx, e)
	if rec.Source != SourceCatalog || s.player == nil {
		return rec, playback.Playlist{}, ErrNoPlaylists
	}

	selected, err := s.player.PlayRandomPlaylist(ctx, rec.Playlists)
	if err != nil {
		return rec, selected, fmt.Errorf("playing for %s: %w", rec.Emotion, err)
	}
	return rec, selected, nil
}
