package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

// Detection is an archived emotion result.
type Detection struct {
	ID          uuid.UUID
	Emotion     string
	Confidence  float64
	Expressions map[string]float64
	DetectedAt  time.Time
	CreatedAt   time.Time
}

// NewDetection converts a result into an archive row with a fresh ID.
func NewDetection(r emotion.Result) Detection {
	expressions := make(map[string]float64, len(r.Expressions()))
	for t, p := range r.Expressions() {
		expressions[string(t)] = p
	}
	return Detection{
		ID:          uuid.New(),
		Emotion:     string(r.Emotion()),
		Confidence:  r.Confidence(),
		Expressions: expressions,
		DetectedAt:  time.UnixMilli(r.Timestamp()).UTC(),
	}
}

// Result converts the row back into an emotion result.
func (d Detection) Result() (emotion.Result, error) {
	dominant, err := emotion.Parse(d.Emotion)
	if err != nil {
		return emotion.Result{}, fmt.Errorf("detection %s: %w", d.ID, err)
	}

	expressions := make(map[emotion.Type]float64, len(d.Expressions))
	for name, p := range d.Expressions {
		t, err := emotion.Parse(name)
		if err != nil {
			return emotion.Result{}, fmt.Errorf("detection %s: %w", d.ID, err)
		}
		expressions[t] = p
	}
	return emotion.NewResult(dominant, d.Confidence, expressions, d.DetectedAt.UnixMilli())
}
