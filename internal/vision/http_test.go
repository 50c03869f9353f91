package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// pngHeader is the smallest byte prefix mimetype recognises as PNG.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newVisionServer(t *testing.T, faces []Face, delegateErr map[string]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var detectCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /models", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if delegateErr[req.Delegate] {
			_ = json.NewEncoder(w).Encode(loadResponse{Error: "delegate not supported"})
			return
		}
		_ = json.NewEncoder(w).Encode(loadResponse{Session: "s-" + req.Delegate})
	})
	mux.HandleFunc("POST /models/{id}/detect", func(w http.ResponseWriter, r *http.Request) {
		detectCalls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(detectResponse{Faces: faces})
	})
	mux.HandleFunc("DELETE /models/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &detectCalls
}

func TestHTTPLoaderLoadAndDetect(t *testing.T) {
	faces := []Face{{{X: 0.1, Y: 0.2, Z: 0}, {X: 0.3, Y: 0.4, Z: 0.01}}}
	server, calls := newVisionServer(t, faces, nil)

	loader := NewHTTPLoader(server.URL, time.Second)
	lm, err := loader.Load(context.Background(), Config{Delegate: "CPU", NumFaces: 1})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer lm.Close()

	frame, err := NewFrame(pngHeader)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	got, err := lm.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("Detect() = %v, want one face with two landmarks", got)
	}
	if calls.Load() != 1 {
		t.Errorf("detect calls = %d, want 1", calls.Load())
	}
}

func TestHTTPLoaderNoFaces(t *testing.T) {
	server, _ := newVisionServer(t, nil, nil)

	lm, err := NewHTTPLoader(server.URL, time.Second).Load(context.Background(), Config{Delegate: "GPU"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, err := lm.Detect(context.Background(), Frame{Data: pngHeader, ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Detect() = %v, want empty non-nil slice", got)
	}
}

func TestHTTPLoaderDelegateRejected(t *testing.T) {
	server, _ := newVisionServer(t, nil, map[string]bool{"GPU": true})

	_, err := NewHTTPLoader(server.URL, time.Second).Load(context.Background(), Config{Delegate: "GPU"})
	if err == nil {
		t.Fatal("Load() error = nil, want delegate error")
	}
}

func TestHTTPLoaderUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"empty endpoint", ""},
		{"unreachable endpoint", "http://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPLoader(tt.endpoint, 200*time.Millisecond).Load(context.Background(), Config{})
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("Load() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestNewFrame(t *testing.T) {
	if _, err := NewFrame([]byte("plain text, not an image")); !errors.Is(err, ErrUnsupportedFrame) {
		t.Errorf("NewFrame(text) error = %v, want ErrUnsupportedFrame", err)
	}

	f, err := NewFrame(pngHeader)
	if err != nil {
		t.Fatalf("NewFrame(png) error = %v", err)
	}
	if f.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", f.ContentType)
	}
}
