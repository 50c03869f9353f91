// Package spotify implements the playback ports on top of the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/go-emotion-music/internal/auth"
	"github.com/justestif/go-emotion-music/internal/playback"
)

const defaultProbeURL = "https://api.spotify.com/v1/"

// Config configures the Provider.
type Config struct {
	RedirectURL string
	TokenCache  *auth.TokenCache
	OnAuthURL   func(url string)
	Breaker     BreakerConfig

	// ProbeURL is requested by Available. Any non-5xx answer means reachable.
	ProbeURL string

	// BaseURL overrides the Web API base URL; TokenURL the client-credentials
	// token endpoint.
	BaseURL  string
	TokenURL string
}

// Provider configures Spotify sessions.
type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) *Provider {
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = defaultProbeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Available reports whether the Spotify Web API answers.
func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}

// Configure builds a Session. Catalog search uses the client-credentials
// flow; player control needs a user token from Authorize or the token cache.
func (p *Provider) Configure(ctx context.Context, cred playback.Credential, app playback.AppInfo) (playback.Session, error) {
	var clientOpts []spotify.ClientOption
	if p.cfg.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(p.cfg.BaseURL))
	}

	authenticator, err := auth.New(auth.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Cache:        p.cfg.TokenCache,
		OnAuthURL:    p.cfg.OnAuthURL,
	}, clientOpts...)
	if err != nil {
		return nil, err
	}

	cc := &clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     p.cfg.TokenURL,
	}
	catalog := spotify.New(cc.Client(context.WithoutCancel(ctx)), clientOpts...)

	s := newSession(catalog, authenticator, p.cfg.Breaker)
	s.app = app

	user, err := authenticator.Cached(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring cached authorization: %w", err)
	}
	s.user = user
	return s, nil
}
