// Package playback drives a streaming-service session: authorization,
// playlist search and transport control. It mirrors everything it learns
// into a State that readers can poll.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/metrics"
	"github.com/justestif/go-emotion-music/internal/vibes"
)

// Sentinel errors.
var (
	ErrNotInitialized       = errors.New("playback not initialized")
	ErrMissingCredential    = errors.New("streaming credential not configured")
	ErrTimeout              = errors.New("streaming service did not become available")
	ErrAuthorizationFailed  = errors.New("authorization failed")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrSubscriptionRequired = errors.New("streaming subscription required")
	ErrSearchFailed         = errors.New("search failed")
	ErrPlaybackFailed       = errors.New("playback failed")
	ErrEmptySelection       = errors.New("no playlists available")
)

// AuthFlagKey is the FlagStore key of the persisted authorization flag.
const AuthFlagKey = "playback-auth"

// Config controls the Controller.
type Config struct {
	Credential   Credential
	Storefront   string
	SearchLimit  int
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		Storefront:   "us",
		SearchLimit:  5,
		ReadyTimeout: 10 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithFlagStore persists the authorization flag in fs.
func WithFlagStore(fs FlagStore) Option {
	return func(c *Controller) { c.flags = fs }
}

// WithSearchCache consults sc before searching the catalog.
func WithSearchCache(sc SearchCache) Option {
	return func(c *Controller) { c.cache = sc }
}

// WithRandSource makes playlist selection deterministic.
func WithRandSource(src rand.Source) Option {
	return func(c *Controller) { c.rng = rand.New(src) }
}

// Controller owns the streaming session and is the only writer of State.
type Controller struct {
	cfg      Config
	provider Provider
	state    *State
	flags    FlagStore
	cache    SearchCache

	// lifecycle serializes Initialize and Cleanup.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	session Session
	sub     Subscription

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewController creates a Controller.
func NewController(cfg Config, provider Provider, state *State, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.Storefront == "" {
		cfg.Storefront = def.Storefront
	}
	if cfg.SearchLimit < 1 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = def.ReadyTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	c := &Controller{
		cfg:      cfg,
		provider: provider,
		state:    state,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}

// State returns the playback state the controller writes to.
func (c *Controller) State() *State {
	return c.state
}

// Ready reports whether a session is configured.
func (c *Controller) Ready() bool {
	return c.current() != nil
}

func (c *Controller) current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Initialize waits for the streaming service, configures a session and
// restores the persisted authorization flag. It is a no-op once ready.
func (c *Controller) Initialize(ctx context.Context) error {
	if c.cfg.Credential.Empty() {
		return ErrMissingCredential
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.current() != nil {
		return nil
	}

	if err := c.waitAvailable(ctx); err != nil {
		return err
	}

	session, err := c.provider.Configure(ctx, c.cfg.Credential, DefaultAppInfo)
	if err != nil {
		return fmt.Errorf("configuring streaming session: %w", err)
	}

	sub := session.OnAuthorizationChange(c.onAuthorizationChange)

	c.mu.Lock()
	c.session = session
	c.sub = sub
	c.mu.Unlock()

	c.rehydrate(ctx, session)

	logging.Info().
		Str("storefront", c.cfg.Storefront).
		Str("authorization", c.state.Authorization().String()).
		Msg("Playback controller ready")
	return nil
}

func (c *Controller) waitAvailable(ctx context.Context) error {
	if c.provider.Available(ctx) {
		return nil
	}

	timer := time.NewTimer(c.cfg.ReadyTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.ReadyTimeout)
		case <-ticker.C:
			if c.provider.Available(ctx) {
				return nil
			}
		}
	}
}

// rehydrate reconciles the persisted flag with the live session. The session
// is authoritative; a stale flag is corrected.
func (c *Controller) rehydrate(ctx context.Context, session Session) {
	authorized := session.IsAuthorized()

	if c.flags != nil {
		persisted, found, err := c.flags.GetFlag(ctx, AuthFlagKey)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to read persisted authorization flag")
		} else if found && persisted != authorized {
			logging.Info().
				Bool("persisted", persisted).
				Bool("session", authorized).
				Msg("Persisted authorization flag is stale, correcting")
			c.persistAuth(ctx, authorized)
		}
	}

	c.setAuthorized(authorized)
}

func (c *Controller) onAuthorizationChange(authorized bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.setAuthorized(authorized)
	c.persistAuth(ctx, authorized)
}

func (c *Controller) setAuthorized(authorized bool) {
	if authorized {
		c.state.SetAuthorization(Authorized)
	} else {
		c.state.SetAuthorization(Unauthorized)
	}
}

func (c *Controller) persistAuth(ctx context.Context, authorized bool) {
	if c.flags == nil {
		return
	}
	if err := c.flags.SetFlag(ctx, AuthFlagKey, authorized); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist authorization flag")
	}
}

// Authorize asks the user to authorize the streaming service.
func (c *Controller) Authorize(ctx context.Context) error {
	s := c.current()
	if s == nil {
		return ErrNotInitialized
	}

	c.state.SetAuthorization(Authorizing)
	if err := s.Authorize(ctx); err != nil {
		c.state.SetAuthorization(Unauthorized)
		metrics.RecordPlaybackCommand("authorize", err)
		return fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	c.state.SetAuthorization(Authorized)
	c.persistAuth(ctx, true)
	metrics.RecordPlaybackCommand("authorize", nil)
	return nil
}

// Unauthorize revokes the authorization. Failures are logged only.
func (c *Controller) Unauthorize(ctx context.Context) {
	s := c.current()
	if s == nil {
		return
	}

	err := s.Unauthorize(ctx)
	metrics.RecordPlaybackCommand("unauthorize", err)
	if err != nil {
		logging.Warn().Err(err).Msg("Unauthorize failed")
		return
	}

	c.state.SetAuthorization(Unauthorized)
	c.persistAuth(ctx, false)
}

// SearchPlaylists searches the catalog and replaces the State results.
// A limit below 1 uses the configured default. On failure it returns an
// empty slice and an error wrapping ErrSearchFailed.
func (c *Controller) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	s := c.current()
	if s == nil {
		return []Playlist{}, ErrNotInitialized
	}
	if limit < 1 {
		limit = c.cfg.SearchLimit
	}

	prev, _ := c.state.Transport()
	if prev == Searching || prev == Errored {
		prev = Idle
	}
	c.state.SetTransport(Searching, "")
	c.state.SetSearchError("")

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, c.cfg.Storefront, query, limit); ok {
			metrics.Searches.WithLabelValues(metrics.OutcomeOK, "cache").Inc()
			c.state.SetPlaylists(cached)
			c.state.SetTransport(prev, "")
			return cached, nil
		}
	}

	playlists, err := s.SearchPlaylists(ctx, c.cfg.Storefront, query, limit)
	if err != nil {
		metrics.Searches.WithLabelValues(metrics.OutcomeError, "catalog").Inc()
		c.state.SetSearchError(err.Error())
		c.state.SetTransport(Errored, err.Error())
		logging.Warn().Err(err).Str("query", query).Msg("Playlist search failed")
		return []Playlist{}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if playlists == nil {
		playlists = []Playlist{}
	}

	metrics.Searches.WithLabelValues(metrics.OutcomeOK, "catalog").Inc()
	c.state.SetPlaylists(playlists)
	c.state.SetTransport(prev, "")

	if c.cache != nil && len(playlists) > 0 {
		c.cache.Set(ctx, c.cfg.Storefront, query, limit, playlists)
	}
	return playlists, nil
}

// SearchForEmotion searches the catalog with the vibe query of e.
func (c *Controller) SearchForEmotion(ctx context.Context, e emotion.Type, limit int) ([]Playlist, error) {
	c.state.SetCurrentEmotion(e)
	return c.SearchPlaylists(ctx, vibes.Lookup(e).SearchQuery, limit)
}

// PlayPlaylist queues and starts the playlist with the given ID.
func (c *Controller) PlayPlaylist(ctx context.Context, id string) error {
	if !c.state.IsAuthorized() {
		return ErrNotAuthorized
	}
	s := c.current()
	if s == nil {
		return ErrNotInitialized
	}

	err := s.SetQueue(ctx, id)
	if err == nil {
		err = s.Play(ctx)
	}
	metrics.RecordPlaybackCommand("play", err)

	if err != nil {
		c.state.SetTransport(Errored, err.Error())
		logging.Warn().Err(err).Str("playlist", id).Msg("Playback failed")
		if isSubscriptionError(err) {
			return fmt.Errorf("%w: %w", ErrSubscriptionRequired, err)
		}
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	if cur, ok := c.state.CurrentPlaylist(); !ok || cur.ID != id {
		for _, p := range c.state.Playlists() {
			if p.ID == id {
				c.state.SetCurrentPlaylist(&p)
				break
			}
		}
	}
	c.state.SetTransport(Playing, "")
	return nil
}

// PlayRandomPlaylist picks one of playlists uniformly and plays it.
func (c *Controller) PlayRandomPlaylist(ctx context.Context, playlists []Playlist) (Playlist, error) {
	if len(playlists) == 0 {
		return Playlist{}, ErrEmptySelection
	}

	c.rngMu.Lock()
	selected := playlists[c.rng.IntN(len(playlists))]
	c.rngMu.Unlock()

	c.state.SetCurrentPlaylist(&selected)
	return selected, c.PlayPlaylist(ctx, selected.ID)
}

// TogglePlayback pauses when playing and plays otherwise. Failures are
// logged only.
func (c *Controller) TogglePlayback(ctx context.Context) {
	s := c.current()
	if s == nil {
		return
	}

	if s.IsPlaying(ctx) {
		err := s.Pause(ctx)
		metrics.RecordPlaybackCommand("pause", err)
		if err != nil {
			logging.Warn().Err(err).Msg("Pause failed")
			return
		}
		c.state.SetTransport(Paused, "")
		return
	}

	err := s.Play(ctx)
	metrics.RecordPlaybackCommand("resume", err)
	if err != nil {
		logging.Warn().Err(err).Msg("Resume failed")
		return
	}
	c.state.SetTransport(Playing, "")
}

// SkipToNext skips to the next track. Failures are logged only.
func (c *Controller) SkipToNext(ctx context.Context) {
	if s := c.current(); s != nil {
		err := s.SkipToNext(ctx)
		metrics.RecordPlaybackCommand("next", err)
		if err != nil {
			logging.Warn().Err(err).Msg("Skip to next failed")
		}
	}
}

// SkipToPrevious skips to the previous track. Failures are logged only.
func (c *Controller) SkipToPrevious(ctx context.Context) {
	if s := c.current(); s != nil {
		err := s.SkipToPrevious(ctx)
		metrics.RecordPlaybackCommand("previous", err)
		if err != nil {
			logging.Warn().Err(err).Msg("Skip to previous failed")
		}
	}
}

// SetVolume clamps v to [0,1], records it and applies it to the session when
// one exists. It returns the clamped value.
func (c *Controller) SetVolume(ctx context.Context, v float64) float64 {
	v = clampVolume(v)
	c.state.SetVolume(v)

	if s := c.current(); s != nil {
		err := s.SetVolume(ctx, v)
		metrics.RecordPlaybackCommand("volume", err)
		if err != nil {
			logging.Warn().Err(err).Float64("volume", v).Msg("Set volume failed")
		}
	}
	return v
}

// Cleanup drops the authorization subscription and the session.
func (c *Controller) Cleanup() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.session = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

var subscriptionMarkers = []string{
	"subscription",
	"access_not_allowed",
	"premium_required",
	"premium required",
}

func isSubscriptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range subscriptionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
