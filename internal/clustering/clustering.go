// Package clustering finds the prevailing mood in a run of emotion results by
// k-means clustering their expression vectors.
package clustering

import (
	"time"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

// Method names how a Trend was derived.
type Method string

const (
	MethodNone      Method = "none"
	MethodKMeans    Method = "kmeans"
	MethodFrequency Method = "frequency"
)

// TrendConfig holds clustering parameters.
type TrendConfig struct {
	NumClusters int // Number of clusters to create (default: 3)
	MinSamples  int // Below this many results, fall back to counting (default: 5)
}

// DefaultTrendConfig returns the recommended default configuration.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		NumClusters: 3,
		MinSamples:  5,
	}
}

// Cluster is a group of results with similar expression vectors.
type Cluster struct {
	Emotion  emotion.Type             `json:"emotion"`
	Mood     string                   `json:"mood"`
	Size     int                      `json:"size"`
	Share    float64                  `json:"share"`
	Centroid map[emotion.Type]float64 `json:"centroid"`
	Start    time.Time                `json:"start"`
	End      time.Time                `json:"end"`
}

// Trend summarises a history of results.
type Trend struct {
	Prevailing emotion.Type `json:"prevailing,omitempty"`
	Mood       string       `json:"mood,omitempty"`
	Method     Method       `json:"method"`
	Samples    int          `json:"samples"`
	Clusters   []Cluster    `json:"clusters,omitempty"`
}
