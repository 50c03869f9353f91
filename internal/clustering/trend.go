package clustering

import (
	"slices"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
)

// resultObservation wraps a Result to implement clusters.Observation.
type resultObservation struct {
	result *emotion.Result
	coords clusters.Coordinates
}

func (o resultObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o resultObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectTrend finds the prevailing emotion in history. With enough samples
// the results are clustered and the largest cluster's strongest emotion wins;
// otherwise the most frequent dominant emotion wins, ties going to the most
// recent.
func DetectTrend(history []emotion.Result, cfg TrendConfig) Trend {
	if len(history) == 0 {
		return Trend{Method: MethodNone}
	}

	// Apply defaults
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultTrendConfig().NumClusters
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultTrendConfig().MinSamples
	}

	if len(history) < cfg.MinSamples || len(history) < cfg.NumClusters {
		return frequencyTrend(history)
	}

	var obs clusters.Observations
	for i := range history {
		obs = append(obs, resultObservation{
			result: &history[i],
			coords: expressionVector(history[i]),
		})
	}

	km := kmeans.New()
	partitions, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		logging.Warn().Err(err).Int("samples", len(history)).Msg("k-means clustering failed, counting instead")
		return frequencyTrend(history)
	}

	var groups []Cluster
	for _, p := range partitions {
		if len(p.Observations) == 0 {
			continue
		}

		var members []emotion.Result
		for _, o := range p.Observations {
			if ro, ok := o.(resultObservation); ok {
				members = append(members, *ro.result)
			}
		}
		slices.SortFunc(members, func(a, b emotion.Result) int {
			return compareInt64(a.Timestamp(), b.Timestamp())
		})

		centroid := centroidMap(p.Center)
		groups = append(groups, Cluster{
			Emotion:  argmax(centroid),
			Mood:     moodName(centroid),
			Size:     len(members),
			Share:    float64(len(members)) / float64(len(history)),
			Centroid: centroid,
			Start:    time.UnixMilli(members[0].Timestamp()).UTC(),
			End:      time.UnixMilli(members[len(members)-1].Timestamp()).UTC(),
		})
	}

	if len(groups) == 0 {
		return frequencyTrend(history)
	}

	// Largest first; equal sizes go to the most recent cluster.
	slices.SortFunc(groups, func(a, b Cluster) int {
		if a.Size != b.Size {
			return b.Size - a.Size
		}
		return b.End.Compare(a.End)
	})

	return Trend{
		Prevailing: groups[0].Emotion,
		Mood:       groups[0].Mood,
		Method:     MethodKMeans,
		Samples:    len(history),
		Clusters:   groups,
	}
}

func frequencyTrend(history []emotion.Result) Trend {
	counts := make(map[emotion.Type]int)
	lastSeen := make(map[emotion.Type]int)
	for i, r := range history {
		counts[r.Emotion()]++
		lastSeen[r.Emotion()] = i
	}

	var best emotion.Type
	for t, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && lastSeen[t] > lastSeen[best]) {
			best = t
		}
	}

	sum := make(map[emotion.Type]float64)
	for _, r := range history {
		for t, p := range r.Expressions() {
			sum[t] += p
		}
	}
	for t := range sum {
		sum[t] /= float64(len(history))
	}

	return Trend{
		Prevailing: best,
		Mood:       moodName(sum),
		Method:     MethodFrequency,
		Samples:    len(history),
	}
}

// expressionVector lays out a result's probabilities in emotion.All order.
func expressionVector(r emotion.Result) clusters.Coordinates {
	expressions := r.Expressions()
	types := emotion.All()
	coords := make(clusters.Coordinates, len(types))
	for i, t := range types {
		coords[i] = expressions[t]
	}
	return coords
}

func centroidMap(center clusters.Coordinates) map[emotion.Type]float64 {
	types := emotion.All()
	m := make(map[emotion.Type]float64, len(types))
	for i, t := range types {
		if i < len(center) {
			m[t] = center[i]
		}
	}
	return m
}

// argmax returns the strongest emotion, ties broken by emotion.All order.
func argmax(centroid map[emotion.Type]float64) emotion.Type {
	best := emotion.Neutral
	bestP := -1.0
	for _, t := range emotion.All() {
		if p := centroid[t]; p > bestP {
			best, bestP = t, p
		}
	}
	return best
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
