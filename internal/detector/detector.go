// Package detector manages the emotion-detection model lifecycle and runs
// detections, falling back to synthetic results when no vision model loads.
package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/justestif/go-emotion-music/internal/emotion"
	"github.com/justestif/go-emotion-music/internal/logging"
	"github.com/justestif/go-emotion-music/internal/metrics"
	"github.com/justestif/go-emotion-music/internal/vision"
)

// Sentinel errors.
var (
	// ErrNotInitialized is returned by Detect before Initialize succeeds.
	ErrNotInitialized = errors.New("detector not initialized")

	// ErrNoFaceDetected is returned when the live model finds no face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrModelLoadFailed is returned by Initialize only when the live model
	// cannot load and synthetic fallback is disabled.
	ErrModelLoadFailed = errors.New("failed to load emotion detection models")

	// ErrDetectionInProgress is returned when Detect is called while another
	// detection is running.
	ErrDetectionInProgress = errors.New("detection already in progress")

	// ErrDetectionFailed wraps any other detection failure.
	ErrDetectionFailed = errors.New("failed to detect emotion")
)

// Status is the detector lifecycle state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusReady
	StatusDetecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusDetecting:
		return "detecting"
	case StatusFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Mode says whether detections use the vision model or synthetic results.
type Mode int

const (
	ModeNone Mode = iota
	ModeLive
	ModeMock
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeMock:
		return "mock"
	default:
		return ""
	}
}

// Snapshot is a serialisable view of the detector state.
type Snapshot struct {
	Status string `json:"status"`
	Mode   string `json:"mode,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Config controls model loading.
type Config struct {
	ModelAssetPath string
	RunningMode    string
	NumFaces       int

	// Delegates are tried in order until one loads.
	Delegates []string

	// AllowMock enables synthetic detections when no delegate loads.
	AllowMock bool
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelAssetPath: "face_landmarker.task",
		RunningMode:    "VIDEO",
		NumFaces:       1,
		Delegates:      []string{"GPU", "CPU"},
		AllowMock:      true,
	}
}

// ResultSink receives every successful result, e.g. for archiving.
type ResultSink interface {
	Record(ctx context.Context, r emotion.Result) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithClassifier replaces the synthetic classifier.
func WithClassifier(c Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// WithSink registers a sink that receives successful results.
func WithSink(s ResultSink) Option {
	return func(d *Detector) { d.sink = s }
}

// Detector owns the vision model and is the only writer of the emotion state.
type Detector struct {
	cfg        Config
	loader     vision.Loader
	state      *emotion.State
	classifier Classifier
	sink       ResultSink

	// lifecycle serializes Initialize and Cleanup.
	lifecycle sync.Mutex

	mu         sync.RWMutex
	status     Status
	mode       Mode
	reason     string
	landmarker vision.Landmarker

	inFlight *semaphore.Weighted
}

// New creates a Detector. A nil loader means no vision capability.
func New(cfg Config, loader vision.Loader, state *emotion.State, opts ...Option) *Detector {
	if len(cfg.Delegates) == 0 {
		cfg.Delegates = DefaultConfig().Delegates
	}
	if cfg.NumFaces < 1 {
		cfg.NumFaces = 1
	}

	d := &Detector{
		cfg:      cfg,
		loader:   loader,
		state:    state,
		inFlight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.classifier == nil {
		d.classifier = NewSyntheticClassifier(nil)
	}
	return d
}

// Initialize loads the vision model, trying each delegate in order, and falls
// back to synthetic mode when none loads. It is a no-op once ready.
func (d *Detector) Initialize(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	switch d.Status() {
	case StatusReady, StatusDetecting:
		return nil
	}

	d.setStatus(StatusInitializing, ModeNone, "")
	d.state.SetError("")

	lm, loadErr := d.loadLive(ctx)
	if loadErr == nil {
		d.mu.Lock()
		d.landmarker = lm
		d.mu.Unlock()
		d.setStatus(StatusReady, ModeLive, "")
		d.state.SetModelsLoaded(true)
		logging.Info().Str("mode", ModeLive.String()).Msg("Emotion detector ready")
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		d.setStatus(StatusUninitialized, ModeNone, "")
		return fmt.Errorf("initializing detector: %w", ctxErr)
	}

	if d.cfg.AllowMock {
		logging.Warn().Err(loadErr).Msg("Vision model unavailable, using synthetic detections")
		d.setStatus(StatusReady, ModeMock, "")
		d.state.SetModelsLoaded(false)
		return nil
	}

	reason := loadErr.Error()
	d.setStatus(StatusFailed, ModeNone, reason)
	d.state.SetModelsLoaded(false)
	d.state.SetError("Failed to load emotion detection models")
	logging.Error().Err(loadErr).Msg("Emotion detector failed to initialize")
	return fmt.Errorf("%w: %w", ErrModelLoadFailed, loadErr)
}

func (d *Detector) loadLive(ctx context.Context) (vision.Landmarker, error) {
	if d.loader == nil {
		return nil, vision.ErrUnavailable
	}

	var errs []error
	for _, delegate := range d.cfg.Delegates {
		lm, err := d.loader.Load(ctx, vision.Config{
			ModelAssetPath: d.cfg.ModelAssetPath,
			Delegate:       delegate,
			RunningMode:    d.cfg.RunningMode,
			NumFaces:       d.cfg.NumFaces,
		})
		if err == nil {
			return lm, nil
		}

		logging.Debug().Err(err).Str("delegate", delegate).Msg("Vision delegate failed to load")
		errs = append(errs, fmt.Errorf("%s: %w", strings.ToLower(delegate), err))

		if errors.Is(err, vision.ErrUnavailable) || ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// Detect runs one detection on frame and records the result in the emotion
// state. Only one detection runs at a time; concurrent calls fail fast with
// ErrDetectionInProgress.
func (d *Detector) Detect(ctx context.Context, frame vision.Frame) (emotion.Result, error) {
	switch d.Status() {
	case StatusReady, StatusDetecting:
	default:
		return emotion.Result{}, ErrNotInitialized
	}

	if !d.inFlight.TryAcquire(1) {
		metrics.Detections.WithLabelValues(d.Mode().String(), "busy").Inc()
		return emotion.Result{}, ErrDetectionInProgress
	}
	defer d.inFlight.Release(1)

	d.mu.Lock()
	if d.status != StatusReady {
		// Cleanup ran between the status check and acquiring the slot.
		d.mu.Unlock()
		return emotion.Result{}, ErrNotInitialized
	}
	d.status = StatusDetecting
	mode := d.mode
	lm := d.landmarker
	d.mu.Unlock()

	d.state.SetDetecting(true)
	start := time.Now()

	defer func() {
		d.state.SetDetecting(false)
		d.mu.Lock()
		if d.status == StatusDetecting {
			d.status = StatusReady
		}
		d.mu.Unlock()
		metrics.DetectionDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	}()

	var faces []vision.Face
	if mode == ModeLive {
		var err error
		faces, err = lm.Detect(ctx, frame)
		if err != nil {
			return d.fail(mode, fmt.Errorf("%w: %w", ErrDetectionFailed, err))
		}
		if len(faces) == 0 {
			metrics.Detections.WithLabelValues(mode.String(), "no_face").Inc()
			d.state.SetError("No face detected. Please face the camera.")
			return emotion.Result{}, ErrNoFaceDetected
		}
	}

	result, err := d.classifier.Classify(faces)
	if err != nil {
		return d.fail(mode, fmt.Errorf("%w: %w", ErrDetectionFailed, err))
	}

	d.state.SetEmotion(result)
	d.state.SetError("")
	metrics.Detections.WithLabelValues(mode.String(), metrics.OutcomeOK).Inc()
	metrics.DetectedEmotions.WithLabelValues(result.Emotion().String()).Inc()

	logging.Debug().
		Str("emotion", result.Emotion().String()).
		Float64("confidence", result.Confidence()).
		Str("mode", mode.String()).
		Msg("Emotion detected")

	if d.sink != nil {
		if err := d.sink.Record(ctx, result); err != nil {
			logging.Warn().Err(err).Msg("Failed to archive detection")
		}
	}

	return result, nil
}

func (d *Detector) fail(mode Mode, err error) (emotion.Result, error) {
	metrics.Detections.WithLabelValues(mode.String(), metrics.OutcomeError).Inc()
	d.state.SetError("Failed to detect emotion")
	logging.Warn().Err(err).Msg("Emotion detection failed")
	return emotion.Result{}, err
}

// DetectFile reads an image file and runs Detect on it.
func (d *Detector) DetectFile(ctx context.Context, path string) (emotion.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return emotion.Result{}, fmt.Errorf("reading image: %w", err)
	}

	frame, err := vision.NewFrame(data)
	if err != nil {
		return emotion.Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return d.Detect(ctx, frame)
}

// Cleanup releases the vision model and returns the detector to the
// uninitialized state. It waits for an in-flight detection to finish and is
// safe to call repeatedly.
func (d *Detector) Cleanup() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	_ = d.inFlight.Acquire(context.Background(), 1)
	defer d.inFlight.Release(1)

	d.mu.Lock()
	lm := d.landmarker
	d.landmarker = nil
	d.status = StatusUninitialized
	d.mode = ModeNone
	d.reason = ""
	d.mu.Unlock()

	if lm != nil {
		if err := lm.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close vision model")
		}
	}
	d.state.SetModelsLoaded(false)
	d.state.SetDetecting(false)
}

// Status returns the current lifecycle state.
func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Mode returns the detection mode. It is ModeNone unless ready.
func (d *Detector) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// Snapshot returns a serialisable view of the detector state.
func (d *Detector) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Status: d.status.String(),
		Mode:   d.mode.String(),
		Reason: d.reason,
	}
}

func (d *Detector) setStatus(s Status, m Mode, reason string) {
	d.mu.Lock()
	d.status = s
	d.mode = m
	d.reason = reason
	d.mu.Unlock()
}
