package emotion

import (
	"math"
	"sync"
)

// HistoryCapacity is the maximum number of results kept in the history.
const HistoryCapacity = 10

// State holds the latest detection result, a bounded history and the
// detector status flags. The detector is its only writer; everything else
// reads through the accessor methods.
type State struct {
	mu           sync.RWMutex
	current      *Result
	history      []Result
	detecting    bool
	modelsLoaded bool
	err          string
}

// NewState creates an empty emotion state.
func NewState() *State {
	return &State{
		history: make([]Result, 0, HistoryCapacity),
	}
}

// SetEmotion replaces the current result and appends it to the history,
// evicting the oldest entry once the history is full.
func (s *State) SetEmotion(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &r
	s.history = append(s.history, r)
	if over := len(s.history) - HistoryCapacity; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// ClearEmotion forgets the current result. History is kept.
func (s *State) ClearEmotion() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// ClearHistory empties the history. The current result is kept.
func (s *State) ClearHistory() {
	s.mu.Lock()
	s.history = make([]Result, 0, HistoryCapacity)
	s.mu.Unlock()
}

// Reset clears the current result, history, detecting flag and error.
// The models-loaded flag reflects the detector lifecycle and is left alone.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.history = make([]Result, 0, HistoryCapacity)
	s.detecting = false
	s.err = ""
}

// SetDetecting records whether a detection is in flight.
func (s *State) SetDetecting(v bool) {
	s.mu.Lock()
	s.detecting = v
	s.mu.Unlock()
}

// SetModelsLoaded records whether the live vision model is loaded.
func (s *State) SetModelsLoaded(v bool) {
	s.mu.Lock()
	s.modelsLoaded = v
	s.mu.Unlock()
}

// SetError records a user-facing error message. An empty string clears it.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// Current returns the latest result, if any.
func (s *State) Current() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Result{}, false
	}
	return *s.current, true
}

// History returns a copy of the history, oldest first.
func (s *State) History() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Result(nil), s.history...)
}

// HasEmotion reports whether a current result exists.
func (s *State) HasEmotion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// EmotionLabel returns the capitalised label of the current emotion, or "".
func (s *State) EmotionLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}
	return s.current.emotion.Label()
}

// ConfidencePercent returns the current confidence as a rounded percentage,
// or 0 when there is no current result.
func (s *State) ConfidencePercent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return 0
	}
	return int(math.Round(s.current.confidence * 100))
}

// IsDetecting reports whether a detection is in flight.
func (s *State) IsDetecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detecting
}

// ModelsLoaded reports whether the live vision model is loaded.
func (s *State) ModelsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelsLoaded
}

// Err returns the last recorded error message.
func (s *State) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshot is a point-in-time, serialisable copy of the state.
type Snapshot struct {
	Current           *View  `json:"current,omitempty"`
	History           []View `json:"history"`
	HasEmotion        bool   `json:"has_emotion"`
	EmotionLabel      string `json:"emotion_label,omitempty"`
	ConfidencePercent int    `json:"confidence_percent"`
	Detecting         bool   `json:"detecting"`
	ModelsLoaded      bool   `json:"models_loaded"`
	Error             string `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		History:      make([]View, len(s.history)),
		HasEmotion:   s.current != nil,
		Detecting:    s.detecting,
		ModelsLoaded: s.modelsLoaded,
		Error:        s.err,
	}
	for i, r := range s.history {
		snap.History[i] = r.View()
	}
	if s.current != nil {
		v := s.current.View()
		snap.Current = &v
		snap.EmotionLabel = v.Label
		snap.ConfidencePercent = int(math.Round(s.current.confidence * 100))
	}
	return snap
}
