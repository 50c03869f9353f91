package spotify

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/metrics"
)

// BreakerConfig configures the circuit breaker around Spotify API calls.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "spotify",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	if cfg.Name == "" {
		cfg.Name = "spotify"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// isBreakerSuccess treats client errors as successes: they say nothing about
// the health of the service.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError &&
			apiErr.Status != http.StatusTooManyRequests
	}
	return false
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
