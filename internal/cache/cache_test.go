package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justestif/go-emotion-music/internal/playback"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name       string
		storefront string
		query      string
		limit      int
		want       string
	}{
		{"plain", "us", "happy upbeat", 5, "search:us:5:happy upbeat"},
		{"case folded", "US", "Happy Upbeat", 5, "search:us:5:happy upbeat"},
		{"trimmed", "gb", "  chill  ", 10, "search:gb:10:chill"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.storefront, tt.query, tt.limit); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	if _, ok := c.Get(ctx, "us", "sad", 5); ok {
		t.Fatal("Get() hit on empty cache")
	}

	want := []playback.Playlist{{ID: "p1", Name: "Sad Songs"}}
	c.Set(ctx, "us", "sad", 5, want)

	got, ok := c.Get(ctx, "US", "Sad", 5)
	if !ok || len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("Get() = %v, %v; want hit with p1", got, ok)
	}

	got[0].ID = "mutated"
	if again, _ := c.Get(ctx, "us", "sad", 5); again[0].ID != "p1" {
		t.Error("Get() returned shared backing storage")
	}

	if _, ok := c.Get(ctx, "us", "sad", 10); ok {
		t.Error("Get() hit for a different limit")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get(ctx, "us", "sad", 5); ok {
		t.Error("Get() hit after expiry")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedis(client, 0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}

	ctx := context.Background()
	c.Set(ctx, "us", "chill", 5, []playback.Playlist{{ID: "p1"}})
	if _, ok := c.Get(ctx, "us", "chill", 5); ok {
		t.Error("Get() hit with unreachable redis")
	}
}
