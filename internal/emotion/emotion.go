// Package emotion defines the detected-emotion data model and the state
// holder that keeps the latest result and a bounded detection history.
package emotion

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"
)

// Type is a detected facial-expression label.
type Type string

// The closed set of emotion labels.
const (
	Happy     Type = "happy"
	Sad       Type = "sad"
	Angry     Type = "angry"
	Surprised Type = "surprised"
	Fearful   Type = "fearful"
	Disgusted Type = "disgusted"
	Neutral   Type = "neutral"
	Contempt  Type = "contempt"
)

// sumTolerance is the allowed drift of the expression probabilities from 1.
const sumTolerance = 1e-6

var all = []Type{Happy, Sad, Angry, Surprised, Fearful, Disgusted, Neutral, Contempt}

// Sentinel errors.
var (
	// ErrUnknownEmotion is returned when a label is not one of the known types.
	ErrUnknownEmotion = errors.New("unknown emotion")

	// ErrInvalidResult is returned when a result violates the probability invariants.
	ErrInvalidResult = errors.New("invalid emotion result")
)

// All returns every emotion type in canonical order.
func All() []Type {
	return append([]Type(nil), all...)
}

// Parse converts a label into a Type. Matching is case-insensitive.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known emotion types.
func (t Type) Valid() bool {
	for _, v := range all {
		if v == t {
			return true
		}
	}
	return false
}

// Label returns the capitalised display label, e.g. "Happy".
func (t Type) Label() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (t Type) String() string {
	return string(t)
}

// Result is a single detection outcome. It is immutable once built;
// construct it with NewResult.
type Result struct {
	emotion     Type
	confidence  float64
	expressions map[Type]float64
	timestamp   int64
}

// NewResult validates and builds a Result.
// Confidence must lie in [0,1]; expressions must be non-negative, cover only
// known types and sum to 1 within a small tolerance.
func NewResult(dominant Type, confidence float64, expressions map[Type]float64, timestampMs int64) (Result, error) {
	if !dominant.Valid() {
		return Result{}, fmt.Errorf("%w: %w: %q", ErrInvalidResult, ErrUnknownEmotion, dominant)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidResult, confidence)
	}

	var sum float64
	for t, p := range expressions {
		if !t.Valid() {
			return Result{}, fmt.Errorf("%w: %w: %q", ErrInvalidResult, ErrUnknownEmotion, t)
		}
		if math.IsNaN(p) || p < 0 {
			return Result{}, fmt.Errorf("%w: negative probability for %s", ErrInvalidResult, t)
		}
		sum += p
	}
	if math.Abs(sum-1) > sumTolerance {
		return Result{}, fmt.Errorf("%w: probabilities sum to %v", ErrInvalidResult, sum)
	}

	return Result{
		emotion:     dominant,
		confidence:  confidence,
		expressions: maps.Clone(expressions),
		timestamp:   timestampMs,
	}, nil
}

// Emotion returns the dominant emotion.
func (r Result) Emotion() Type { return r.emotion }

// Confidence returns the confidence of the dominant emotion.
func (r Result) Confidence() float64 { return r.confidence }

// Expressions returns a copy of the per-emotion probabilities.
func (r Result) Expressions() map[Type]float64 { return maps.Clone(r.expressions) }

// Timestamp returns the detection time in milliseconds since the epoch.
func (r Result) Timestamp() int64 { return r.timestamp }

// IsZero reports whether r is the zero Result.
func (r Result) IsZero() bool { return r.emotion == "" }

// View is the serialisable form of a Result.
type View struct {
	Emotion     Type             `json:"emotion"`
	Label       string           `json:"label"`
	Confidence  float64          `json:"confidence"`
	Expressions map[Type]float64 `json:"expressions"`
	Timestamp   int64            `json:"timestamp"`
}

// View returns the serialisable form of r.
func (r Result) View() View {
	return View{
		Emotion:     r.emotion,
		Label:       r.emotion.Label(),
		Confidence:  r.confidence,
		Expressions: r.Expressions(),
		Timestamp:   r.timestamp,
	}
}
