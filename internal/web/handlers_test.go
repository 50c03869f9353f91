package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/detector"
	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/recommend"
	"github.com/justestif/go-emotion-music/internal/vision"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// unavailableLoader forces the detector into mock mode.
type unavailableLoader struct{}

func (unavailableLoader) Load(context.Context, vision.Config) (vision.Landmarker, error) {
	return nil, vision.ErrUnavailable
}

// fakePlayer is a test double for Player and recommend.Searcher.
type fakePlayer struct {
	state *playback.State

	mu           sync.Mutex
	playlists    []playback.Playlist
	authorizeErr error
	played       []string
	toggles      int

	// authorizeGate, when set, holds Authorize until it is closed.
	authorizeGate  chan struct{}
	authorizeCalls atomic.Int32
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{state: playback.NewState()}
}

func (p *fakePlayer) State() *playback.State { return p.state }

func (p *fakePlayer) Authorize(context.Context) error {
	p.authorizeCalls.Add(1)
	if p.authorizeGate != nil {
		<-p.authorizeGate
	}
	if p.authorizeErr != nil {
		return p.authorizeErr
	}
	p.state.SetAuthorization(playback.Authorized)
	return nil
}

func (p *fakePlayer) Unauthorize(context.Context) {
	p.state.SetAuthorization(playback.Unauthorized)
}

func (p *fakePlayer) SearchPlaylists(_ context.Context, _ string, _ int) ([]playback.Playlist, error) {
	p.state.SetPlaylists(p.playlists)
	return p.playlists, nil
}

func (p *fakePlayer) SearchForEmotion(ctx context.Context, e emotion.Type, limit int) ([]playback.Playlist, error) {
	p.state.SetCurrentEmotion(e)
	return p.SearchPlaylists(ctx, string(e), limit)
}

func (p *fakePlayer) PlayPlaylist(_ context.Context, id string) error {
	if !p.state.IsAuthorized() {
		return playback.ErrNotAuthorized
	}
	p.mu.Lock()
	p.played = append(p.played, id)
	p.mu.Unlock()
	p.state.SetTransport(playback.Playing, "")
	return nil
}

func (p *fakePlayer) PlayRandomPlaylist(ctx context.Context, playlists []playback.Playlist) (playback.Playlist, error) {
	if len(playlists) == 0 {
		return playback.Playlist{}, playback.ErrEmptySelection
	}
	return playlists[0], p.PlayPlaylist(ctx, playlists[0].ID)
}

func (p *fakePlayer) TogglePlayback(context.Context) {
	p.mu.Lock()
	p.toggles++
	p.mu.Unlock()
}

func (p *fakePlayer) SkipToNext(context.Context)     {}
func (p *fakePlayer) SkipToPrevious(context.Context) {}

func (p *fakePlayer) SetVolume(_ context.Context, v float64) float64 {
	p.state.SetVolume(v)
	return p.state.Volume()
}

type testEnv struct {
	handler  http.Handler
	emotions *emotion.State
	player   *fakePlayer
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()

	emotions := emotion.NewState()
	det := detector.New(detector.DefaultConfig(), unavailableLoader{}, emotions)
	if err := det.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	player := newFakePlayer()
	srv := NewServer(cfg, Deps{
		Detector:    det,
		Emotions:    emotions,
		Player:      player,
		Recommender: recommend.New(player, player),
	})
	return &testEnv{handler: srv.Handler(), emotions: emotions, player: player}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	if rec := env.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("GET /metrics = %d", rec.Code)
	}
}

func TestVibes(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/api/vibes", http.StatusOK, "contempt"},
		{"/api/vibes/happy", http.StatusOK, "Upbeat"},
		{"/api/vibes/SAD", http.StatusOK, "fallback_songs"},
		{"/api/vibes/bored", http.StatusBadRequest, CodeUnknownEmotion},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q missing %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	env := newTestEnv(t, ServerConfig{MaxImageBytes: 64})

	tests := []struct {
		name     string
		body     []byte
		wantCode int
		wantErr  string
	}{
		{"png", pngHeader, http.StatusOK, ""},
		{"text", []byte("hello, not an image"), http.StatusUnsupportedMediaType, CodeUnsupportedMedia},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, 100)...), http.StatusRequestEntityTooLarge, CodeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/emotion/detect", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if got := decodeBody[errorResponse](t, rec); got.Code != tt.wantErr {
					t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
				}
				return
			}
			view := decodeBody[emotion.View](t, rec)
			if !view.Emotion.Valid() || view.Confidence < 0.6 || view.Confidence > 0.9 {
				t.Errorf("view = %+v", view)
			}
		})
	}

	if len(env.emotions.History()) != 1 {
		t.Errorf("history length = %d, want 1", len(env.emotions.History()))
	}
}

func TestEmotionStateEndpoints(t *testing.T) {
	env := newTestEnv(t, ServerConfig{Trend: clustering.DefaultTrendConfig()})

	for i := 0; i < 3; i++ {
		if rec := env.do(t, http.MethodPost, "/api/emotion/detect", pngHeader); rec.Code != http.StatusOK {
			t.Fatalf("detect = %d", rec.Code)
		}
	}

	snap := decodeBody[emotion.Snapshot](t, env.do(t, http.MethodGet, "/api/emotion", nil))
	if !snap.HasEmotion || len(snap.History) != 3 || snap.ModelsLoaded {
		t.Errorf("snapshot = %+v", snap)
	}

	trend := decodeBody[clustering.Trend](t, env.do(t, http.MethodGet, "/api/emotion/trend", nil))
	if trend.Method != clustering.MethodFrequency || trend.Samples != 3 {
		t.Errorf("trend = %+v", trend)
	}

	if rec := env.do(t, http.MethodDelete, "/api/emotion", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /api/emotion = %d", rec.Code)
	}
	if env.emotions.HasEmotion() || len(env.emotions.History()) != 3 {
		t.Error("clearing the emotion should keep history")
	}

	if rec := env.do(t, http.MethodDelete, "/api/emotion/history", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /api/emotion/history = %d", rec.Code)
	}
	if len(env.emotions.History()) != 0 {
		t.Error("history not cleared")
	}

	snap = decodeBody[emotion.Snapshot](t, env.do(t, http.MethodPost, "/api/emotion/reset", nil))
	if snap.HasEmotion || len(snap.History) != 0 {
		t.Errorf("snapshot after reset = %+v", snap)
	}

	status := decodeBody[detector.Snapshot](t, env.do(t, http.MethodGet, "/api/detector", nil))
	if status.Mode != detector.ModeMock.String() {
		t.Errorf("detector mode = %q, want mock", status.Mode)
	}
}

func TestPlaybackEndpoints(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.player.playlists = []playback.Playlist{{ID: "p1", Name: "Chill"}}

	rec := env.do(t, http.MethodPost, "/api/playback/play", []byte(`{"playlist_id":"p1"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("play while unauthorized = %d, want 401", rec.Code)
	}
	if tr, _ := env.player.state.Transport(); tr != playback.Idle {
		t.Errorf("transport = %s, want idle", tr)
	}

	rec = env.do(t, http.MethodPost, "/api/playback/play-random", nil)
	if rec.Code != http.StatusNotFound || decodeBody[errorResponse](t, rec).Code != CodeEmptySelection {
		t.Errorf("play-random without results = %d %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodPost, "/api/playback/authorize", nil); rec.Code != http.StatusOK {
		t.Fatalf("authorize = %d: %s", rec.Code, rec.Body.String())
	}

	search := decodeBody[searchResponse](t, env.do(t, http.MethodGet, "/api/playback/search?q=chill&limit=3", nil))
	if len(search.Playlists) != 1 {
		t.Errorf("search = %+v", search)
	}

	if rec := env.do(t, http.MethodPost, "/api/playback/play", []byte(`{"playlist_id":"p1"}`)); rec.Code != http.StatusOK {
		t.Errorf("play = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/playback/play", []byte(`{}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("play without id = %d, want 400", rec.Code)
	}

	vol := decodeBody[volumeResponse](t, env.do(t, http.MethodPut, "/api/playback/volume", []byte(`{"volume":1.7}`)))
	if vol.Volume != 1 {
		t.Errorf("volume = %v, want 1", vol.Volume)
	}
	if rec := env.do(t, http.MethodPut, "/api/playback/volume", []byte(`{}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("volume without value = %d, want 400", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/playback/toggle", nil); rec.Code != http.StatusOK || env.player.toggles != 1 {
		t.Errorf("toggle = %d, toggles %d", rec.Code, env.player.toggles)
	}

	out := decodeBody[playForEmotionResponse](t, env.do(t, http.MethodPost, "/api/playback/emotion/happy/play", nil))
	if out.Playing.ID != "p1" || out.Recommendation.Source != recommend.SourceCatalog {
		t.Errorf("play for emotion = %+v", out)
	}

	for _, bad := range []string{"/api/playback/search", "/api/playback/search?q=x&limit=0"} {
		if rec := env.do(t, http.MethodGet, bad, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", bad, rec.Code)
		}
	}
}

func TestAuthorizeFailure(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.player.authorizeErr = errors.Join(playback.ErrAuthorizationFailed, errors.New("denied"))

	rec := env.do(t, http.MethodPost, "/api/playback/authorize", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("authorize = %d, want 502", rec.Code)
	}
}

func TestRecommendationDefaultsToCurrentEmotion(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	rec := decodeBody[recommend.Recommendation](t, env.do(t, http.MethodGet, "/api/recommendation", nil))
	if rec.Emotion != emotion.Neutral || rec.Source != recommend.SourceFallback {
		t.Errorf("recommendation = %+v, want neutral fallback", rec)
	}

	res, err := emotion.NewResult(emotion.Sad, 1, map[emotion.Type]float64{emotion.Sad: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	env.emotions.SetEmotion(res)

	rec = decodeBody[recommend.Recommendation](t, env.do(t, http.MethodGet, "/api/recommendation", nil))
	if rec.Emotion != emotion.Sad {
		t.Errorf("recommendation emotion = %s, want sad", rec.Emotion)
	}

	if got := env.do(t, http.MethodGet, "/api/recommendation?emotion=bored", nil); got.Code != http.StatusBadRequest {
		t.Errorf("unknown emotion = %d, want 400", got.Code)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{detector.ErrDetectionInProgress, http.StatusConflict, CodeBusy},
		{detector.ErrNoFaceDetected, http.StatusUnprocessableEntity, CodeNoFace},
		{detector.ErrNotInitialized, http.StatusServiceUnavailable, CodeNotInitialized},
		{playback.ErrSubscriptionRequired, http.StatusPaymentRequired, CodeSubscription},
		{playback.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout},
		{recommend.ErrNoPlaylists, http.StatusNotFound, CodeEmptySelection},
		{errors.New("other"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestAuthorizeRunsOneFlowAtATime(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.player.authorizeGate = make(chan struct{})

	var wg sync.WaitGroup
	codes := make([]int, 3)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = env.do(t, http.MethodPost, "/api/playback/authorize", nil).Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusAccepted {
			t.Errorf("request %d = %d, want 202 while the flow waits", i, code)
		}
	}
	if n := env.player.authorizeCalls.Load(); n != 1 {
		t.Errorf("Authorize called %d times, want 1", n)
	}

	close(env.player.authorizeGate)
	deadline := time.Now().Add(2 * time.Second)
	for !env.player.state.IsAuthorized() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !env.player.state.IsAuthorized() {
		t.Fatal("flow did not complete")
	}

	// A finished flow lets the next request through.
	env.player.authorizeGate = nil
	code := 0
	for code != http.StatusOK && time.Now().Before(deadline) {
		code = env.do(t, http.MethodPost, "/api/playback/authorize", nil).Code
	}
	if code != http.StatusOK {
		t.Errorf("authorize after completion = %d, want 200", code)
	}
	if n := env.player.authorizeCalls.Load(); n != 2 {
		t.Errorf("Authorize called %d times, want 2", n)
	}
}
