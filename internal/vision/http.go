package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const userAgent = "go-emotion-music/1.0"

// maxResponseBytes caps the size of a detection response.
const maxResponseBytes = 4 << 20

// HTTPLoader loads landmarkers served by a remote vision endpoint.
type HTTPLoader struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPLoader creates a loader for the given endpoint. An empty endpoint
// yields a loader whose Load always returns ErrUnavailable.
func NewHTTPLoader(endpoint string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type loadRequest struct {
	ModelAssetPath string `json:"model_asset_path"`
	Delegate       string `json:"delegate"`
	RunningMode    string `json:"running_mode"`
	NumFaces       int    `json:"num_faces"`
}

type loadResponse struct {
	Session string `json:"session"`
	Error   string `json:"error,omitempty"`
}

type detectResponse struct {
	Faces []Face `json:"faces"`
	Error string `json:"error,omitempty"`
}

// Load asks the endpoint to load a model with the requested delegate.
func (l *HTTPLoader) Load(ctx context.Context, cfg Config) (Landmarker, error) {
	if l.endpoint == "" {
		return nil, ErrUnavailable
	}

	if err := l.healthCheck(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(loadRequest{
		ModelAssetPath: cfg.ModelAssetPath,
		Delegate:       cfg.Delegate,
		RunningMode:    cfg.RunningMode,
		NumFaces:       cfg.NumFaces,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding load request: %w", err)
	}

	respBody, err := l.post(ctx, l.endpoint+"/models", "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("loading model with %s delegate: %w", cfg.Delegate, err)
	}

	var resp loadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing load response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("loading model with %s delegate: %s", cfg.Delegate, resp.Error)
	}
	if resp.Session == "" {
		return nil, fmt.Errorf("loading model with %s delegate: empty session", cfg.Delegate)
	}

	return &httpLandmarker{loader: l, session: resp.Session}, nil
}

func (l *HTTPLoader) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (l *HTTPLoader) post(ctx context.Context, rawURL, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return respBody, nil
}

func (l *HTTPLoader) delete(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

type httpLandmarker struct {
	loader  *HTTPLoader
	session string
}

func (h *httpLandmarker) sessionURL(suffix string) string {
	return h.loader.endpoint + "/models/" + url.PathEscape(h.session) + suffix
}

// Detect sends the frame to the endpoint and returns the faces found.
func (h *httpLandmarker) Detect(ctx context.Context, frame Frame) ([]Face, error) {
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	respBody, err := h.loader.post(ctx, h.sessionURL("/detect"), contentType, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("detecting landmarks: %w", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing detect response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detecting landmarks: %s", resp.Error)
	}
	if resp.Faces == nil {
		resp.Faces = []Face{}
	}
	return resp.Faces, nil
}

// Close releases the remote model session.
func (h *httpLandmarker) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.loader.delete(ctx, h.sessionURL("")); err != nil {
		return fmt.Errorf("closing model session: %w", err)
	}
	return nil
}
