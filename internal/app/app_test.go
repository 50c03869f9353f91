package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/config"
	"github.com/justestif/go-emotion-music/internal/detector"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/recommend"
	"github.com/justestif/go-emotion-music/internal/vision"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			MaxImageBytes:   1 << 20,
		},
		Detector: config.DetectorConfig{
			ModelAssetPath: "face_landmarker.task",
			RunningMode:    "VIDEO",
			NumFaces:       1,
			Delegates:      []string{"GPU", "CPU"},
			AllowMock:      true,
		},
		Vision:  config.VisionConfig{Timeout: time.Second},
		Spotify: config.SpotifyConfig{RedirectURL: "http://127.0.0.1:8888/callback", TokenCache: filepath.Join(dir, "token.json")},
		Playback: config.PlaybackConfig{
			Storefront:   "us",
			SearchLimit:  5,
			ReadyTimeout: time.Second,
			PollInterval: 10 * time.Millisecond,
		},
		Store: config.StoreConfig{Kind: "file", Path: filepath.Join(dir, "state.json")},
		Cache: config.CacheConfig{TTL: time.Minute},
		Trend: config.TrendConfig{NumClusters: 2, MinSamples: 4, ArchiveLimit: 50},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewStoreKinds(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"memory", false},
		{"file", false},
		{"badger", false},
		{"postgres", true},
		{"floppy", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Store.Kind = tt.kind
			if tt.kind == "badger" {
				cfg.Store.Path = filepath.Join(t.TempDir(), "badger")
			}

			a, err := New(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if a != nil {
				if err := a.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}
		})
	}
}

func TestInitializeWithoutCredentials(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if a.Detector.Mode() != detector.ModeMock {
		t.Errorf("detector mode = %s, want mock", a.Detector.Mode())
	}
	if a.Playback.Ready() {
		t.Error("playback ready without credentials")
	}

	rec := a.Recommender.Recommend(context.Background(), "happy")
	if rec.Source != recommend.SourceFallback || len(rec.Songs) == 0 {
		t.Errorf("Recommend() = %+v, want fallback songs", rec)
	}
}

func TestTrendUsesInMemoryHistory(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	frame, err := vision.NewFrame(pngHeader)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := a.Detector.Detect(context.Background(), frame); err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
	}

	trend, err := a.Trend(context.Background())
	if err != nil {
		t.Fatalf("Trend() error = %v", err)
	}
	if trend.Samples != 6 || trend.Method != clustering.MethodKMeans {
		t.Errorf("Trend() = %+v, want kmeans over 6 samples", trend)
	}
}

func TestServerHandler(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detector", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/detector = %d", rec.Code)
	}
}

func TestInitializerStopsAfterSuccess(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	err := initializer{app: a}.Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

// offlineProvider is a streaming service that never becomes reachable.
type offlineProvider struct {
	checks atomic.Int32
}

func (p *offlineProvider) Available(context.Context) bool {
	p.checks.Add(1)
	return false
}

func (p *offlineProvider) Configure(context.Context, playback.Credential, playback.AppInfo) (playback.Session, error) {
	return nil, errors.New("unreachable")
}

func TestInitializerRetriesPlaybackTimeout(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	provider := &offlineProvider{}
	a.Playback = playback.NewController(playback.Config{
		Credential:   playback.Credential{ClientID: "id", ClientSecret: "secret"},
		ReadyTimeout: 30 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, provider, playback.NewState())

	err := initializer{app: a}.Serve(context.Background())
	if errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatal("Serve() stopped retrying after a playback timeout")
	}
	if !errors.Is(err, playback.ErrTimeout) {
		t.Errorf("Serve() error = %v, want ErrTimeout", err)
	}
	if a.Playback.Ready() {
		t.Error("playback ready while the service is unreachable")
	}
	if provider.checks.Load() == 0 {
		t.Error("provider availability never checked")
	}

	// The detector still comes up while playback waits.
	if a.Detector.Mode() != detector.ModeMock {
		t.Errorf("detector mode = %s, want mock", a.Detector.Mode())
	}
}
