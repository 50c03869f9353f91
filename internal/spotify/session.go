package spotify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-emotion-music/internal/auth"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
)

// errNoUser is returned by player calls before authorization.
var errNoUser = errors.New("spotify user not authorized")

// Session is a configured Spotify session.
type Session struct {
	catalog *spotify.Client
	auth    *auth.Authenticator
	breaker *gobreaker.CircuitBreaker[any]
	app     playback.AppInfo

	mu     sync.Mutex
	user   *spotify.Client
	queued spotify.URI
	onAuth func(bool)
	subSeq uint64
}

func newSession(catalog *spotify.Client, a *auth.Authenticator, bc BreakerConfig) *Session {
	return &Session{
		catalog: catalog,
		auth:    a,
		breaker: newBreaker(bc),
	}
}

func (s *Session) userClient() *spotify.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) setUser(c *spotify.Client) {
	s.mu.Lock()
	s.user = c
	cb := s.onAuth
	s.mu.Unlock()

	if cb != nil {
		cb(c != nil)
	}
}

// call runs fn through the circuit breaker.
func (s *Session) call(fn func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// IsAuthorized reports whether a user token is available.
func (s *Session) IsAuthorized() bool {
	return s.userClient() != nil
}

// Authorize runs the OAuth flow.
func (s *Session) Authorize(ctx context.Context) error {
	client, err := s.auth.Login(ctx)
	if err != nil {
		return err
	}
	logging.Info().Str("app", s.app.Name).Msg("Spotify authorized")
	s.setUser(client)
	return nil
}

// Unauthorize forgets the user token.
func (s *Session) Unauthorize(_ context.Context) error {
	if err := s.auth.Logout(); err != nil {
		return err
	}
	s.setUser(nil)
	return nil
}

// SearchPlaylists searches the catalog for playlists.
func (s *Session) SearchPlaylists(ctx context.Context, storefront, query string, limit int) ([]playback.Playlist, error) {
	var result *spotify.SearchResult
	err := s.call(func() error {
		var err error
		result, err = s.catalog.Search(ctx, query, spotify.SearchTypePlaylist,
			spotify.Limit(limit),
			spotify.Market(strings.ToUpper(storefront)),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("searching playlists: %w", err)
	}

	playlists := []playback.Playlist{}
	if result == nil || result.Playlists == nil {
		return playlists, nil
	}
	for _, p := range result.Playlists.Playlists {
		// Spotify returns null entries for playlists the caller may not see.
		if p.ID == "" {
			continue
		}
		playlists = append(playlists, convertPlaylist(p))
	}
	return playlists, nil
}

func convertPlaylist(p spotify.SimplePlaylist) playback.Playlist {
	out := playback.Playlist{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		CuratorName: p.Owner.DisplayName,
	}
	if len(p.Images) > 0 {
		out.ArtworkURL = p.Images[0].URL
	}
	return out
}

// SetQueue remembers the playlist to start on the next Play.
func (s *Session) SetQueue(_ context.Context, playlistID string) error {
	if playlistID == "" {
		return errors.New("empty playlist id")
	}
	s.mu.Lock()
	s.queued = spotify.URI("spotify:playlist:" + playlistID)
	s.mu.Unlock()
	return nil
}

// Play starts the queued playlist, or resumes playback.
func (s *Session) Play(ctx context.Context) error {
	user := s.userClient()
	if user == nil {
		return errNoUser
	}

	s.mu.Lock()
	queued := s.queued
	s.queued = ""
	s.mu.Unlock()

	return s.call(func() error {
		if queued != "" {
			return user.PlayOpt(ctx, &spotify.PlayOptions{PlaybackContext: &queued})
		}
		return user.Play(ctx)
	})
}

func (s *Session) Pause(ctx context.Context) error {
	return s.player(func(c *spotify.Client) error { return c.Pause(ctx) })
}

// IsPlaying reports whether the user's active device is playing.
func (s *Session) IsPlaying(ctx context.Context) bool {
	user := s.userClient()
	if user == nil {
		return false
	}

	var playing bool
	err := s.call(func() error {
		state, err := user.PlayerState(ctx)
		if err != nil {
			return err
		}
		playing = state != nil && state.Playing
		return nil
	})
	if err != nil {
		logging.Debug().Err(err).Msg("Reading player state failed")
		return false
	}
	return playing
}

func (s *Session) SkipToNext(ctx context.Context) error {
	return s.player(func(c *spotify.Client) error { return c.Next(ctx) })
}

func (s *Session) SkipToPrevious(ctx context.Context) error {
	return s.player(func(c *spotify.Client) error { return c.Previous(ctx) })
}

// SetVolume sets the device volume; v is in [0,1].
func (s *Session) SetVolume(ctx context.Context, v float64) error {
	percent := int(math.Round(v * 100))
	return s.player(func(c *spotify.Client) error { return c.Volume(ctx, percent) })
}

func (s *Session) player(fn func(*spotify.Client) error) error {
	user := s.userClient()
	if user == nil {
		return errNoUser
	}
	return s.call(func() error { return fn(user) })
}

// OnAuthorizationChange registers fn, replacing any earlier callback.
func (s *Session) OnAuthorizationChange(fn func(bool)) playback.Subscription {
	s.mu.Lock()
	s.subSeq++
	seq := s.subSeq
	s.onAuth = fn
	s.mu.Unlock()

	return subscription{s: s, seq: seq}
}

type subscription struct {
	s   *Session
	seq uint64
}

// Unsubscribe removes the callback unless it was already replaced.
func (sub subscription) Unsubscribe() {
	sub.s.mu.Lock()
	if sub.s.subSeq == sub.seq {
		sub.s.onAuth = nil
	}
	sub.s.mu.Unlock()
}
