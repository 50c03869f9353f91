package playback

import (
	"math"
	"slices"
	"sync"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

// AuthStatus is the streaming-service authorization state.
type AuthStatus int

const (
	Unauthorized AuthStatus = iota
	Authorizing
	Authorized
)

func (a AuthStatus) String() string {
	switch a {
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	default:
		return "unauthorized"
	}
}

// Transport is the playback transport state.
type Transport int

const (
	Idle Transport = iota
	Searching
	Playing
	Paused
	Stopped
	Errored
)

func (t Transport) String() string {
	switch t {
	case Searching:
		return "searching"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// Playlist is a catalog playlist returned by search.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ArtworkURL  string `json:"artwork_url,omitempty"`
	CuratorName string `json:"curator_name,omitempty"`
}

// DefaultVolume is the initial volume.
const DefaultVolume = 0.5

// State holds the playback status. The Controller is its only writer.
type State struct {
	mu             sync.RWMutex
	auth           AuthStatus
	transport      Transport
	errorReason    string
	playlists      []Playlist
	current        *Playlist
	searchError    string
	currentEmotion emotion.Type
	volume         float64
}

// NewState creates an idle, unauthorized playback state.
func NewState() *State {
	return &State{volume: DefaultVolume}
}

// SetAuthorization sets the authorization status.
func (s *State) SetAuthorization(a AuthStatus) {
	s.mu.Lock()
	s.auth = a
	s.mu.Unlock()
}

// SetPlaylists replaces the search results.
func (s *State) SetPlaylists(p []Playlist) {
	s.mu.Lock()
	s.playlists = slices.Clone(p)
	s.mu.Unlock()
}

// AddPlaylist appends one playlist to the results.
func (s *State) AddPlaylist(p Playlist) {
	s.mu.Lock()
	s.playlists = append(s.playlists, p)
	s.mu.Unlock()
}

// ClearPlaylists empties the search results and drops the selection.
func (s *State) ClearPlaylists() {
	s.mu.Lock()
	s.playlists = nil
	s.current = nil
	s.mu.Unlock()
}

// SetCurrentPlaylist sets the selected playlist; nil clears it.
func (s *State) SetCurrentPlaylist(p *Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.current = nil
		return
	}
	cp := *p
	s.current = &cp
}

// SetTransport sets the transport state. The reason is kept only for Errored.
func (s *State) SetTransport(t Transport, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
	if t == Errored {
		s.errorReason = reason
	} else {
		s.errorReason = ""
	}
}

// SetSearchError records the last search failure; "" clears it.
func (s *State) SetSearchError(msg string) {
	s.mu.Lock()
	s.searchError = msg
	s.mu.Unlock()
}

// SetCurrentEmotion records the emotion the current results were found for.
func (s *State) SetCurrentEmotion(e emotion.Type) {
	s.mu.Lock()
	s.currentEmotion = e
	s.mu.Unlock()
}

// SetVolume records the volume. The value is clamped to [0,1].
func (s *State) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clampVolume(v)
	s.mu.Unlock()
}

// Reset returns the state to its initial values.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = Unauthorized
	s.transport = Idle
	s.errorReason = ""
	s.playlists = nil
	s.current = nil
	s.searchError = ""
	s.currentEmotion = ""
	s.volume = DefaultVolume
}

// Authorization returns the authorization status.
func (s *State) Authorization() AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// IsAuthorized reports whether the status is Authorized.
func (s *State) IsAuthorized() bool {
	return s.Authorization() == Authorized
}

// Transport returns the transport state and, when Errored, its reason.
func (s *State) Transport() (Transport, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport, s.errorReason
}

// IsPlaying reports whether the transport is Playing.
func (s *State) IsPlaying() bool {
	t, _ := s.Transport()
	return t == Playing
}

// IsSearching reports whether a search is in flight.
func (s *State) IsSearching() bool {
	t, _ := s.Transport()
	return t == Searching
}

// Playlists returns a copy of the search results.
func (s *State) Playlists() []Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.playlists)
}

// HasPlaylists reports whether the last search returned anything.
func (s *State) HasPlaylists() bool {
	return s.PlaylistCount() > 0
}

// PlaylistCount returns the number of search results.
func (s *State) PlaylistCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.playlists)
}

// CurrentPlaylist returns the selected playlist, if any.
func (s *State) CurrentPlaylist() (Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Playlist{}, false
	}
	return *s.current, true
}

// SearchError returns the message of the last failed search.
func (s *State) SearchError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchError
}

// CurrentEmotion returns the emotion of the last emotion search.
func (s *State) CurrentEmotion() emotion.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEmotion
}

// Volume returns the volume in [0,1].
func (s *State) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Snapshot is a serialisable copy of the playback state.
type Snapshot struct {
	Authorization   string       `json:"authorization"`
	Transport       string       `json:"transport"`
	ErrorReason     string       `json:"error_reason,omitempty"`
	Playlists       []Playlist   `json:"playlists"`
	CurrentPlaylist *Playlist    `json:"current_playlist,omitempty"`
	SearchError     string       `json:"search_error,omitempty"`
	CurrentEmotion  emotion.Type `json:"current_emotion,omitempty"`
	Volume          float64      `json:"volume"`
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Authorization:  s.auth.String(),
		Transport:      s.transport.String(),
		ErrorReason:    s.errorReason,
		Playlists:      slices.Clone(s.playlists),
		SearchError:    s.searchError,
		CurrentEmotion: s.currentEmotion,
		Volume:         s.volume,
	}
	if snap.Playlists == nil {
		snap.Playlists = []Playlist{}
	}
	if s.current != nil {
		cp := *s.current
		snap.CurrentPlaylist = &cp
	}
	return snap
}

func clampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
