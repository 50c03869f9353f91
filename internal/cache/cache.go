// Package cache stores playlist search results so repeated searches for the
// same vibe do not hit the catalog.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
)

// DefaultTTL is how long search results stay cached.
const DefaultTTL = 30 * time.Minute

const keyPrefix = "search:"

// Key builds the cache key for a search.
func Key(storefront, query string, limit int) string {
	return fmt.Sprintf("%s%s:%d:%s", keyPrefix, strings.ToLower(storefront), limit, strings.ToLower(strings.TrimSpace(query)))
}

// Redis caches search results in Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis cache over client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns cached playlists. Redis errors count as a miss.
func (c *Redis) Get(ctx context.Context, storefront, query string, limit int) ([]playback.Playlist, bool) {
	data, err := c.client.Get(ctx, Key(storefront, query, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Search cache read failed")
		return nil, false
	}

	var playlists []playback.Playlist
	if err := json.Unmarshal(data, &playlists); err != nil {
		logging.Warn().Err(err).Msg("Discarding malformed search cache entry")
		return nil, false
	}
	return playlists, true
}

// Set stores playlists. Failures are logged.
func (c *Redis) Set(ctx context.Context, storefront, query string, limit int, playlists []playback.Playlist) {
	data, err := json.Marshal(playlists)
	if err != nil {
		logging.Warn().Err(err).Msg("Encoding search cache entry failed")
		return
	}
	if err := c.client.Set(ctx, Key(storefront, query, limit), data, c.ttl).Err(); err != nil {
		logging.Warn().Err(err).Msg("Search cache write failed")
	}
}

type memoryEntry struct {
	playlists []playback.Playlist
	expires   time.Time
}

// Memory is an in-process cache with the same expiry semantics.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemory creates an in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns cached playlists that have not expired.
func (c *Memory) Get(_ context.Context, storefront, query string, limit int) ([]playback.Playlist, bool) {
	key := Key(storefront, query, limit)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return append([]playback.Playlist(nil), e.playlists...), true
}

// Set stores a copy of playlists.
func (c *Memory) Set(_ context.Context, storefront, query string, limit int, playlists []playback.Playlist) {
	c.mu.Lock()
	c.entries[Key(storefront, query, limit)] = memoryEntry{
		playlists: append([]playback.Playlist(nil), playlists...),
		expires:   c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}
