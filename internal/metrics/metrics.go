// Package metrics defines the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detections counts detection attempts by detector mode and outcome.
	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotion_detections_total",
			Help: "Total number of emotion detections",
		},
		[]string{"mode", "outcome"}, // mode: live, mock; outcome: ok, no_face, busy, error
	)

	// DetectedEmotions counts successful detections by dominant emotion.
	DetectedEmotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotion_detected_total",
			Help: "Successful detections by dominant emotion",
		},
		[]string{"emotion"},
	)

	// DetectionDuration observes how long detections take.
	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emotion_detection_duration_seconds",
			Help:    "Duration of emotion detections in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Searches counts playlist searches by outcome and source.
	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_searches_total",
			Help: "Total number of playlist searches",
		},
		[]string{"outcome", "source"}, // source: catalog, cache
	)

	// PlaybackCommands counts transport commands by command and outcome.
	PlaybackCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_commands_total",
			Help: "Total number of playback commands",
		},
		[]string{"command", "outcome"},
	)

	// Recommendations counts recommendations by the path that produced them.
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendations served by source",
		},
		[]string{"source"}, // catalog, lastfm, fallback
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Outcome labels shared by the counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RecordPlaybackCommand increments PlaybackCommands for command.
func RecordPlaybackCommand(command string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	PlaybackCommands.WithLabelValues(command, outcome).Inc()
}
