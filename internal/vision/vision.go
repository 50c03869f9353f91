// Package vision provides the face-landmark capability used by the emotion
// detector. The model itself runs out of process; this package talks to it
// over HTTP.
package vision

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when no vision endpoint is configured or it
	// does not answer its health check.
	ErrUnavailable = errors.New("vision capability unavailable")

	// ErrUnsupportedFrame is returned when a frame is not an image.
	ErrUnsupportedFrame = errors.New("frame is not an image")
)

// Landmark is a normalised 3D face landmark.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face is the landmark set of one detected face.
type Face []Landmark

// Frame is a single still image or video frame.
type Frame struct {
	Data        []byte
	ContentType string
}

// NewFrame builds a Frame from raw bytes, sniffing the content type.
// Returns ErrUnsupportedFrame when the bytes are not an image.
func NewFrame(data []byte) (Frame, error) {
	mt := mimetype.Detect(data)
	if !isImage(mt) {
		return Frame{}, ErrUnsupportedFrame
	}
	return Frame{Data: data, ContentType: mt.String()}, nil
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("image/jpeg") || m.Is("image/png") || m.Is("image/webp") ||
			m.Is("image/gif") || m.Is("image/bmp") {
			return true
		}
	}
	return false
}

// Config describes how the landmark model should be loaded.
type Config struct {
	ModelAssetPath string
	Delegate       string
	RunningMode    string
	NumFaces       int
}

// Landmarker detects faces in frames.
type Landmarker interface {
	Detect(ctx context.Context, frame Frame) ([]Face, error)
	Close() error
}

// Loader loads a Landmarker for a configuration.
type Loader interface {
	Load(ctx context.Context, cfg Config) (Landmarker, error)
}
