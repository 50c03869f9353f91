// Package app builds the application from its configuration and runs it
// under a supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/justestif/go-emotion-music/internal/auth"
	"github.com/justestif/go-emotion-music/internal/cache"
	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/config"
	"github.com/justestif/go-emotion-music/internal/db"
	"github.com/justestif/go-emotion-music/internal/detector"
	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/lastfm"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/recommend"
	"github.com/justestif/go-emotion-music/internal/spotify"
	"github.com/justestif/go-emotion-music/internal/store"
	"github.com/justestif/go-emotion-music/internal/vision"
	"github.com/justestif/go-emotion-music/internal/web"
)

// App holds the wired components.
type App struct {
	cfg *config.Config

	Emotions    *emotion.State
	Detector    *detector.Detector
	Playback    *playback.Controller
	Recommender *recommend.Service

	// DB is nil unless a database URL is configured.
	DB *db.DB

	closers []func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	onAuthURL func(url string)
}

// WithAuthURLHandler receives the authorization URL when the OAuth flow
// starts, e.g. to print it on a terminal.
func WithAuthURLHandler(fn func(url string)) Option {
	return func(o *options) { o.onAuthURL = fn }
}

// New wires every component described by cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, Emotions: emotion.NewState()}

	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { database.Close(); return nil })
		if err := database.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.DB = database
	}

	var detOpts []detector.Option
	if a.DB != nil {
		detOpts = append(detOpts, detector.WithSink(a.DB.Detections()))
	}
	a.Detector = detector.New(detector.Config{
		ModelAssetPath: cfg.Detector.ModelAssetPath,
		RunningMode:    cfg.Detector.RunningMode,
		NumFaces:       cfg.Detector.NumFaces,
		Delegates:      cfg.Detector.Delegates,
		AllowMock:      cfg.Detector.AllowMock,
	}, vision.NewHTTPLoader(cfg.Vision.Endpoint, cfg.Vision.Timeout), a.Emotions, detOpts...)

	flags, err := a.flagStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	searchCache, err := a.searchCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	tokenCache, err := a.tokenCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	provider := spotify.NewProvider(spotify.Config{
		RedirectURL: cfg.Spotify.RedirectURL,
		TokenCache:  tokenCache,
		OnAuthURL:   o.onAuthURL,
		BaseURL:     cfg.Spotify.BaseURL,
	})
	a.Playback = playback.NewController(playback.Config{
		Credential: playback.Credential{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		},
		Storefront:   cfg.Playback.Storefront,
		SearchLimit:  cfg.Playback.SearchLimit,
		ReadyTimeout: cfg.Playback.ReadyTimeout,
		PollInterval: cfg.Playback.PollInterval,
	}, provider, playback.NewState(),
		playback.WithFlagStore(flags),
		playback.WithSearchCache(searchCache),
	)

	recOpts := []recommend.Option{recommend.WithLimit(cfg.Playback.SearchLimit)}
	if cfg.LastFM.APIKey != "" {
		recOpts = append(recOpts, recommend.WithTrackFetcher(lastfm.NewClient(&lastfm.Config{APIKey: cfg.LastFM.APIKey})))
	}
	a.Recommender = recommend.New(a.Playback, a.Playback, recOpts...)

	return a, nil
}

func (a *App) flagStore() (playback.FlagStore, error) {
	kind, err := store.ParseKind(a.cfg.Store.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case store.KindMemory:
		return store.NewMemoryStore(), nil
	case store.KindBadger:
		dir := a.cfg.Store.Path
		if dir == "" {
			if dir, err = store.DefaultPath("state.badger"); err != nil {
				return nil, err
			}
		}
		bs, err := store.OpenBadger(dir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bs.Close)
		return bs, nil
	case store.KindPostgres:
		if a.DB == nil {
			return nil, errors.New("postgres state store needs a database URL")
		}
		return a.DB.ClientState(), nil
	default:
		return store.NewFileStore(a.cfg.Store.Path)
	}
}

func (a *App) searchCache(ctx context.Context) (playback.SearchCache, error) {
	if a.cfg.Cache.RedisAddr == "" {
		return cache.NewMemory(a.cfg.Cache.TTL), nil
	}
	client, err := cache.Connect(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewRedis(client, a.cfg.Cache.TTL), nil
}

func (a *App) tokenCache() (*auth.TokenCache, error) {
	if a.cfg.Spotify.TokenCache != "" {
		return auth.NewTokenCache(filepath.Clean(a.cfg.Spotify.TokenCache)), nil
	}
	return auth.DefaultTokenCache()
}

// TrendConfig returns the clustering configuration.
func (a *App) TrendConfig() clustering.TrendConfig {
	return clustering.TrendConfig{
		NumClusters: a.cfg.Trend.NumClusters,
		MinSamples:  a.cfg.Trend.MinSamples,
	}
}

// History returns the results trends are computed over: the archive when a
// database is configured, the in-memory history otherwise.
func (a *App) History(ctx context.Context) ([]emotion.Result, error) {
	if a.DB == nil {
		return a.Emotions.History(), nil
	}
	results, err := a.DB.Detections().RecentResults(ctx, a.cfg.Trend.ArchiveLimit)
	if err != nil {
		return nil, fmt.Errorf("loading detection archive: %w", err)
	}
	return results, nil
}

// Trend computes the prevailing mood over History.
func (a *App) Trend(ctx context.Context) (clustering.Trend, error) {
	history, err := a.History(ctx)
	if err != nil {
		return clustering.Trend{}, err
	}
	return clustering.DetectTrend(history, a.TrendConfig()), nil
}

// Server builds the HTTP API over the app's components.
func (a *App) Server() *web.Server {
	s := a.cfg.Server
	return web.NewServer(web.ServerConfig{
		Addr:            s.Addr,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		CORSOrigins:     s.CORSOrigins,
		DetectRate:      s.DetectRate,
		MaxImageBytes:   s.MaxImageBytes,
		Trend:           a.TrendConfig(),
	}, web.Deps{
		Detector:    a.Detector,
		Emotions:    a.Emotions,
		Player:      a.Playback,
		Recommender: a.Recommender,
		History:     a.History,
	})
}

// Initialize loads the detector and configures playback. A playback timeout
// is returned so the caller can retry; other playback failures are logged
// and absorbed, since recommendations still work without a session.
// Repeated calls are cheap: both components skip work once ready.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.Detector.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Playback.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, playback.ErrTimeout) {
			return fmt.Errorf("initializing playback: %w", err)
		}
		logging.Warn().Err(err).Msg("Playback unavailable")
	}
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	if a.Playback != nil {
		a.Playback.Cleanup()
	}
	if a.Detector != nil {
		a.Detector.Cleanup()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
