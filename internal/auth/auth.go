package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/go-emotion-music/internal/logging"
)

const (
	// DefaultRedirectURL uses explicit IPv4 loopback as required by Spotify
	// for local development.
	DefaultRedirectURL = "http://127.0.0.1:8080/callback"

	defaultCallbackTimeout = 2 * time.Minute
)

var (
	// ErrMissingCredentials is returned when the client ID or secret is empty.
	ErrMissingCredentials = errors.New("missing Spotify client ID or secret")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authorization timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Scopes needed to search, read player state and control playback.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeStreaming,
}

// Config configures an Authenticator.
type Config struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	CallbackTimeout time.Duration

	// Cache stores tokens between runs. Nil uses DefaultTokenCache.
	Cache *TokenCache

	// OnAuthURL receives the URL the user must open. Nil logs it.
	OnAuthURL func(url string)
}

// Authenticator handles Spotify OAuth2 authorization.
type Authenticator struct {
	auth            *spotifyauth.Authenticator
	cache           *TokenCache
	redirectURL     string
	callbackTimeout time.Duration
	onAuthURL       func(string)
	clientOpts      []spotify.ClientOption
}

// New creates an Authenticator.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func New(cfg Config, clientOpts ...spotify.ClientOption) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = DefaultRedirectURL
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = defaultCallbackTimeout
	}

	cache := cfg.Cache
	if cache == nil {
		var err error
		cache, err = DefaultTokenCache()
		if err != nil {
			return nil, fmt.Errorf("creating token cache: %w", err)
		}
	}

	onAuthURL := cfg.OnAuthURL
	if onAuthURL == nil {
		onAuthURL = func(u string) {
			logging.Info().Str("url", u).Msg("Open this URL in your browser to authorize Spotify")
		}
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
	)

	return &Authenticator{
		auth:            auth,
		cache:           cache,
		redirectURL:     cfg.RedirectURL,
		callbackTimeout: cfg.CallbackTimeout,
		onAuthURL:       onAuthURL,
		clientOpts:      append([]spotify.ClientOption{spotify.WithRetry(true)}, clientOpts...),
	}, nil
}

// Cached returns a client built from the cached token, verifying it with a
// lightweight API call. It returns (nil, nil) when there is no usable token.
func (a *Authenticator) Cached(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, nil
	}

	// oauth2 refreshes the token transparently if needed.
	client := spotify.New(a.auth.Client(context.WithoutCancel(ctx), token), a.clientOpts...)

	if _, err := client.CurrentUser(ctx); err != nil {
		logging.Info().Err(err).Msg("Cached Spotify token invalid")
		return nil, nil
	}

	if newToken, err := client.Token(); err == nil && newToken.AccessToken != token.AccessToken {
		if err := a.cache.Save(newToken); err != nil {
			logging.Warn().Err(err).Msg("Failed to cache refreshed token")
		}
	}
	return client, nil
}

// Login runs the full OAuth authorization code flow and returns an
// authenticated client.
func (a *Authenticator) Login(ctx context.Context) (*spotify.Client, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	u, err := url.Parse(a.redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URL: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("callback server error: %w", err):
			default:
			}
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.onAuthURL(a.auth.AuthURL(state))

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(a.callbackTimeout):
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := a.cache.Save(token); err != nil {
		// Authorization still succeeded.
		logging.Warn().Err(err).Msg("Failed to cache token")
	}

	return spotify.New(a.auth.Client(context.WithoutCancel(ctx), token), a.clientOpts...), nil
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		sendErr(errCh, ErrStateMismatch)
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authorization failed: "+errMsg, http.StatusBadRequest)
		sendErr(errCh, fmt.Errorf("spotify auth error: %s", errMsg))
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		sendErr(errCh, fmt.Errorf("exchanging code for token: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body>
<h1>Authorization Successful!</h1>
<p>You can close this window and return to Emotion Music.</p>
</body>
</html>`)

	select {
	case tokenCh <- token:
	default:
	}
}

func sendErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}
