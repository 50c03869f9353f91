package playback

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeProvider is a test double for Provider.
type fakeProvider struct {
	session      *fakeSession
	availableAt  int32 // Available returns true from this call number on; 0 means never
	availCalls   atomic.Int32
	configureErr error
	configures   atomic.Int32
}

func (p *fakeProvider) Available(context.Context) bool {
	n := p.availCalls.Add(1)
	return p.availableAt > 0 && n >= p.availableAt
}

func (p *fakeProvider) Configure(_ context.Context, _ Credential, _ AppInfo) (Session, error) {
	p.configures.Add(1)
	if p.configureErr != nil {
		return nil, p.configureErr
	}
	return p.session, nil
}

// fakeSession is a test double for Session.
type fakeSession struct {
	mu         sync.Mutex
	authorized bool
	playing    bool
	volume     float64
	queued     string
	authCB     func(bool)

	authorizeErr error
	searchErr    error
	playErr      error
	skipErr      error
	results      []Playlist

	searches      atomic.Int32
	unsubscribes  atomic.Int32
	skips         atomic.Int32
	subscriptions atomic.Int32
}

func (s *fakeSession) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

func (s *fakeSession) Authorize(context.Context) error {
	if s.authorizeErr != nil {
		return s.authorizeErr
	}
	s.mu.Lock()
	s.authorized = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Unauthorize(context.Context) error {
	s.mu.Lock()
	s.authorized = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) SearchPlaylists(_ context.Context, _, _ string, limit int) ([]Playlist, error) {
	s.searches.Add(1)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if limit < len(s.results) {
		return s.results[:limit], nil
	}
	return s.results, nil
}

func (s *fakeSession) SetQueue(_ context.Context, id string) error {
	s.mu.Lock()
	s.queued = id
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Play(context.Context) error {
	if s.playErr != nil {
		return s.playErr
	}
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Pause(context.Context) error {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) IsPlaying(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSession) SkipToNext(context.Context) error {
	s.skips.Add(1)
	return s.skipErr
}

func (s *fakeSession) SkipToPrevious(context.Context) error {
	s.skips.Add(1)
	return s.skipErr
}

func (s *fakeSession) SetVolume(_ context.Context, v float64) error {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) OnAuthorizationChange(fn func(bool)) Subscription {
	s.subscriptions.Add(1)
	s.mu.Lock()
	s.authCB = fn
	s.mu.Unlock()
	return subscriptionFunc(func() {
		s.unsubscribes.Add(1)
		s.mu.Lock()
		s.authCB = nil
		s.mu.Unlock()
	})
}

// fireAuthChange simulates the service reporting an authorization change.
func (s *fakeSession) fireAuthChange(authorized bool) {
	s.mu.Lock()
	s.authorized = authorized
	cb := s.authCB
	s.mu.Unlock()
	if cb != nil {
		cb(authorized)
	}
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }

// memFlags is an in-memory FlagStore.
type memFlags struct {
	mu     sync.Mutex
	values map[string]bool
	writes atomic.Int32
}

func newMemFlags() *memFlags {
	return &memFlags{values: make(map[string]bool)}
}

func (m *memFlags) GetFlag(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memFlags) SetFlag(_ context.Context, key string, value bool) error {
	m.writes.Add(1)
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// memCache is an in-memory SearchCache.
type memCache struct {
	mu    sync.Mutex
	items map[string][]Playlist
	hits  atomic.Int32
}

func (m *memCache) Get(_ context.Context, storefront, query string, _ int) ([]Playlist, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[storefront+"|"+query]
	if ok {
		m.hits.Add(1)
	}
	return p, ok
}

func (m *memCache) Set(_ context.Context, storefront, query string, _ int, p []Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string][]Playlist)
	}
	m.items[storefront+"|"+query] = p
}
