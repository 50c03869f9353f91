// Package auth provides Spotify OAuth2 authorization with token caching.
package auth

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/justestif/go-emotion-music/internal/store"
)

// TokenFileName is the token file inside the per-user config directory.
const TokenFileName = "token.json"

var errNilToken = errors.New("cannot save nil token")

// storedToken is the on-disk form of a user token. Only the fields needed to
// refresh the session are kept.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

func (s storedToken) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}
}

// TokenCache keeps the user token in a 0600 file next to the state file.
type TokenCache struct {
	mu   sync.Mutex
	path string
}

// DefaultTokenCache returns a TokenCache at store.DefaultPath(TokenFileName).
func DefaultTokenCache() (*TokenCache, error) {
	path, err := store.DefaultPath(TokenFileName)
	if err != nil {
		return nil, err
	}
	return NewTokenCache(path), nil
}

// NewTokenCache creates a TokenCache at path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

func (c *TokenCache) Path() string {
	return c.path
}

// Load returns the cached token, or nil when none was saved.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, nil
	}
	return st.token(), nil
}

// Save replaces the cached token.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return errNilToken
	}

	data, err := json.MarshalIndent(storedToken{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		SavedAt:      time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return store.WriteFileAtomic(c.path, data)
}

// Delete forgets the cached token. A missing file is not an error.
func (c *TokenCache) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}
	return nil
}
