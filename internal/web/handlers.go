package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/justestif/go-emotion-music/internal/clustering"
	"github.com/justestif/go-emotion-music/internal/detector"
	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/playback"
	"github.com/justestif/go-emotion-music/internal/recommend"
	"github.com/justestif/go-emotion-music/internal/vibes"
	"github.com/justestif/go-emotion-music/internal/vision"
)

// authorizeGrace is how long Authorize waits for a quick outcome before
// answering 202.
const authorizeGrace = 250 * time.Millisecond

// Detector is the part of the emotion detector the API uses.
type Detector interface {
	Detect(ctx context.Context, frame vision.Frame) (emotion.Result, error)
	Snapshot() detector.Snapshot
}

// Player is the part of the playback controller the API uses.
type Player interface {
	State() *playback.State
	Authorize(ctx context.Context) error
	Unauthorize(ctx context.Context)
	SearchPlaylists(ctx context.Context, query string, limit int) ([]playback.Playlist, error)
	PlayPlaylist(ctx context.Context, id string) error
	PlayRandomPlaylist(ctx context.Context, playlists []playback.Playlist) (playback.Playlist, error)
	TogglePlayback(ctx context.Context)
	SkipToNext(ctx context.Context)
	SkipToPrevious(ctx context.Context)
	SetVolume(ctx context.Context, v float64) float64
}

// Recommender builds recommendations.
type Recommender interface {
	Recommend(ctx context.Context, e emotion.Type) recommend.Recommendation
	PlayForEmotion(ctx context.Context, e emotion.Type) (recommend.Recommendation, playback.Playlist, error)
}

// HistorySource returns the results a trend is computed over, oldest first.
type HistorySource func(ctx context.Context) ([]emotion.Result, error)

// Deps are the components served by the API.
type Deps struct {
	Detector    Detector
	Emotions    *emotion.State
	Player      Player
	Recommender Recommender

	// History defaults to the in-memory emotion history.
	History HistorySource
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	deps     Deps
	maxBytes int64
	trend    clustering.TrendConfig
	validate *validator.Validate

	// baseCtx outlives requests; background authorization runs under it.
	mu      sync.Mutex
	baseCtx context.Context

	// authorizing is set while a background authorization flow runs.
	authorizing atomic.Bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, maxBytes int64, trend clustering.TrendConfig) *Handlers {
	if deps.History == nil && deps.Emotions != nil {
		state := deps.Emotions
		deps.History = func(context.Context) ([]emotion.Result, error) {
			return state.History(), nil
		}
	}
	return &Handlers{
		deps:     deps,
		maxBytes: maxBytes,
		trend:    trend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		baseCtx:  context.Background(),
	}
}

func (h *Handlers) setBaseContext(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()
}

func (h *Handlers) background() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.baseCtx
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListVibes handles GET /api/vibes.
func (h *Handlers) ListVibes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, vibes.All())
}

// GetVibe handles GET /api/vibes/{emotion}.
func (h *Handlers) GetVibe(w http.ResponseWriter, r *http.Request) {
	e, err := emotion.Parse(chi.URLParam(r, "emotion"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vibes.Lookup(e))
}

// Detect handles POST /api/emotion/detect. The body is a raw image.
func (h *Handlers) Detect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "image exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "reading body: "+err.Error())
		return
	}

	frame, err := vision.NewFrame(body)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.deps.Detector.Detect(r.Context(), frame)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.View())
}

// GetEmotion handles GET /api/emotion.
func (h *Handlers) GetEmotion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Emotions.Snapshot())
}

// ClearEmotion handles DELETE /api/emotion.
func (h *Handlers) ClearEmotion(w http.ResponseWriter, r *http.Request) {
	h.deps.Emotions.ClearEmotion()
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory handles DELETE /api/emotion/history.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.deps.Emotions.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// ResetEmotion handles POST /api/emotion/reset.
func (h *Handlers) ResetEmotion(w http.ResponseWriter, r *http.Request) {
	h.deps.Emotions.Reset()
	writeJSON(w, http.StatusOK, h.deps.Emotions.Snapshot())
}

// Trend handles GET /api/emotion/trend.
func (h *Handlers) Trend(w http.ResponseWriter, r *http.Request) {
	history, err := h.deps.History(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clustering.DetectTrend(history, h.trend))
}

// DetectorStatus handles GET /api/detector.
func (h *Handlers) DetectorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Detector.Snapshot())
}

// emotionParam reads the emotion from the query, falling back to the
// current emotion and then neutral.
func (h *Handlers) emotionParam(r *http.Request) (emotion.Type, error) {
	if raw := r.URL.Query().Get("emotion"); raw != "" {
		return emotion.Parse(raw)
	}
	if cur, ok := h.deps.Emotions.Current(); ok {
		return cur.Emotion(), nil
	}
	return emotion.Neutral, nil
}

// Recommendation handles GET /api/recommendation?emotion=.
func (h *Handlers) Recommendation(w http.ResponseWriter, r *http.Request) {
	e, err := h.emotionParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Recommender.Recommend(r.Context(), e))
}

// PlaybackState handles GET /api/playback.
func (h *Handlers) PlaybackState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Player.State().Snapshot())
}

// Authorize handles POST /api/playback/authorize. The OAuth flow waits for a
// browser callback, so it runs in the background; poll GET /api/playback.
func (h *Handlers) Authorize(w http.ResponseWriter, r *http.Request) {
	// Only one flow may own the callback listener.
	if !h.authorizing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusAccepted, h.deps.Player.State().Snapshot())
		return
	}

	ctx := h.background()
	done := make(chan error, 1)
	go func() {
		err := h.deps.Player.Authorize(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("Authorization failed")
		}
		h.authorizing.Store(false)
		done <- err
	}()

	// Answer synchronously when the flow finishes quickly, e.g. it failed
	// before reaching the browser.
	timer := time.NewTimer(authorizeGrace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Player.State().Snapshot())
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, h.deps.Player.State().Snapshot())
	}
}

// Unauthorize handles POST /api/playback/unauthorize.
func (h *Handlers) Unauthorize(w http.ResponseWriter, r *http.Request) {
	h.deps.Player.Unauthorize(r.Context())
	writeJSON(w, http.StatusOK, h.deps.Player.State().Snapshot())
}

type searchResponse struct {
	Query     string              `json:"query"`
	Playlists []playback.Playlist `json:"playlists"`
}

// Search handles GET /api/playback/search?q=&limit=.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "q is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	playlists, err := h.deps.Player.SearchPlaylists(r.Context(), query, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Playlists: playlists})
}

type playRequest struct {
	PlaylistID string `json:"playlist_id" validate:"required"`
}

// decode reads a JSON body into v and validates it.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return false
	}
	return true
}

// Play handles POST /api/playback/play.
func (h *Handlers) Play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.deps.Player.PlayPlaylist(r.Context(), req.PlaylistID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Player.State().Snapshot())
}

// PlayRandom handles POST /api/playback/play-random over the current results.
func (h *Handlers) PlayRandom(w http.ResponseWriter, r *http.Request) {
	selected, err := h.deps.Player.PlayRandomPlaylist(r.Context(), h.deps.Player.State().Playlists())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selected)
}

type playForEmotionResponse struct {
	Recommendation recommend.Recommendation `json:"recommendation"`
	Playing        playback.Playlist        `json:"playing"`
}

// PlayForEmotion handles POST /api/playback/emotion/{emotion}/play.
func (h *Handlers) PlayForEmotion(w http.ResponseWriter, r *http.Request) {
	e, err := emotion.Parse(chi.URLParam(r, "emotion"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, selected, err := h.deps.Recommender.PlayForEmotion(r.Context(), e)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playForEmotionResponse{Recommendation: rec, Playing: selected})
}

// Toggle handles POST /api/playback/toggle.
func (h *Handlers) Toggle(w http.ResponseWriter, r *http.Request) {
	h.deps.Player.TogglePlayback(r.Context())
	writeJSON(w, http.StatusOK, h.deps.Player.State().Snapshot())
}

// Next handles POST /api/playback/next.
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	h.deps.Player.SkipToNext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Previous handles POST /api/playback/previous.
func (h *Handlers) Previous(w http.ResponseWriter, r *http.Request) {
	h.deps.Player.SkipToPrevious(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type volumeRequest struct {
	Volume *float64 `json:"volume" validate:"required"`
}

type volumeResponse struct {
	Volume float64 `json:"volume"`
}

// Volume handles PUT /api/playback/volume. Out-of-range values are clamped.
func (h *Handlers) Volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := h.deps.Player.SetVolume(r.Context(), *req.Volume)
	writeJSON(w, http.StatusOK, volumeResponse{Volume: v})
}
