package clustering

import (
	"fmt"
	"slices"
	"strings"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

const (
	topEmotionCount = 3
	timeFormat      = "2006-01-02 15:04"
)

// FormatTrend returns a human-readable summary of a trend.
func FormatTrend(t Trend) string {
	var sb strings.Builder

	if t.Method == MethodNone || t.Samples == 0 {
		sb.WriteString("No emotions recorded yet\n")
		return sb.String()
	}

	resultWord := "result"
	if t.Samples > 1 {
		resultWord = "results"
	}
	fmt.Fprintf(&sb, "Prevailing emotion: %s (%s) from %d %s via %s\n",
		t.Prevailing.Label(), t.Mood, t.Samples, resultWord, t.Method)

	for i, c := range t.Clusters {
		sb.WriteString("\n")
		sb.WriteString(formatCluster(i+1, c))
	}

	return sb.String()
}

// formatCluster formats a single cluster with its strongest emotions.
func formatCluster(num int, c Cluster) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Cluster %d: %s, %s (%d, %.0f%%) %s to %s\n",
		num, c.Emotion.Label(), c.Mood, c.Size, c.Share*100,
		c.Start.Format(timeFormat), c.End.Format(timeFormat))

	for _, t := range topEmotions(c.Centroid, topEmotionCount) {
		fmt.Fprintf(&sb, "  • %-10s %5.1f%%\n", t.Label(), c.Centroid[t]*100)
	}

	return sb.String()
}

func topEmotions(centroid map[emotion.Type]float64, n int) []emotion.Type {
	types := emotion.All()
	slices.SortStableFunc(types, func(a, b emotion.Type) int {
		switch {
		case centroid[a] > centroid[b]:
			return -1
		case centroid[a] < centroid[b]:
			return 1
		}
		return 0
	})
	return types[:min(n, len(types))]
}
