package detector

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/vision"
)

// Classifier turns detected faces into an emotion result. Faces is nil when
// the detector runs without a vision model.
type Classifier interface {
	Classify(faces []vision.Face) (emotion.Result, error)
}

// Confidence range of synthetic results.
const (
	syntheticMinConfidence = 0.6
	syntheticMaxConfidence = 0.9
)

// SyntheticClassifier produces plausible random results. It stands in for a
// real expression model: the dominant emotion is uniform over all types, its
// confidence uniform in [0.6, 0.9], and the remainder split evenly.
type SyntheticClassifier struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSyntheticClassifier creates a classifier. A nil src uses a randomly
// seeded source.
func NewSyntheticClassifier(src rand.Source) *SyntheticClassifier {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &SyntheticClassifier{
		rng: rand.New(src),
		now: time.Now,
	}
}

// Classify ignores the landmarks and returns a random result.
func (c *SyntheticClassifier) Classify(_ []vision.Face) (emotion.Result, error) {
	types := emotion.All()

	c.mu.Lock()
	dominant := types[c.rng.IntN(len(types))]
	confidence := syntheticMinConfidence + c.rng.Float64()*(syntheticMaxConfidence-syntheticMinConfidence)
	c.mu.Unlock()

	rest := (1 - confidence) / float64(len(types)-1)
	expressions := make(map[emotion.Type]float64, len(types))
	for _, t := range types {
		if t == dominant {
			expressions[t] = confidence
		} else {
			expressions[t] = rest
		}
	}

	return emotion.NewResult(dominant, confidence, expressions, c.now().UnixMilli())
}
