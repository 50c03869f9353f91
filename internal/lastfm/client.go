package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	baseURL   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "go-emotion-music/1.0"
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrUnknownTag is returned when Last.fm does not know the tag.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrUnavailable is returned when Last.fm keeps answering 5xx.
	ErrUnavailable = errors.New("last.fm unavailable")
)

// Client is a Last.fm API client with caching and rate limiting.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	delays     []time.Duration

	// In-memory cache: key = "{tag}:{limit}"
	cache   map[string][]Track
	cacheMu sync.RWMutex
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = baseURL
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: base,
		delays:  []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		cache:   make(map[string][]Track),
	}
}

// TopTracks returns up to limit of the most popular tracks for tag.
// Results are cached in memory. Returns an empty slice (not nil) if the tag
// has no tracks.
func (c *Client) TopTracks(ctx context.Context, tag string, limit int) ([]Track, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	cacheKey := fmt.Sprintf("%s:%d", tag, limit)

	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return append([]Track(nil), cached...), nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{
		"method":  {"tag.getTopTracks"},
		"tag":     {tag},
		"limit":   {strconv.Itoa(limit)},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks for %q: %w", tag, err)
	}

	var resp topTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}

	tracks := make([]Track, 0, len(resp.Tracks.Track))
	for _, t := range resp.Tracks.Track {
		if t.Name == "" {
			continue
		}
		tracks = append(tracks, Track{Name: t.Name, Artist: t.Artist.Name, URL: t.URL})
		if limit > 0 && len(tracks) == limit {
			break
		}
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = tracks
	c.cacheMu.Unlock()

	return append([]Track(nil), tracks...), nil
}

// doRequest performs an HTTP GET request, retrying rate limits and server
// errors with the configured delays.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= len(c.delays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
			lastErr = err
			continue
		}

		// Non-retryable error
		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrUnknownTag, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}
