package playback

import "context"

// Credential identifies the application to the streaming service.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// Empty reports whether the credential is missing.
func (c Credential) Empty() bool {
	return c.ClientID == ""
}

// AppInfo is reported to the streaming service when configuring a session.
type AppInfo struct {
	Name  string
	Build string
}

// DefaultAppInfo is the application identity used by the controller.
var DefaultAppInfo = AppInfo{Name: "Emotion Music Recommender", Build: "1.0.0"}

// Provider is a streaming service that can be configured into a Session.
type Provider interface {
	// Available reports whether the service is reachable.
	Available(ctx context.Context) bool

	Configure(ctx context.Context, cred Credential, app AppInfo) (Session, error)
}

// Session is a configured streaming-service session.
type Session interface {
	IsAuthorized() bool
	Authorize(ctx context.Context) error
	Unauthorize(ctx context.Context) error

	SearchPlaylists(ctx context.Context, storefront, query string, limit int) ([]Playlist, error)

	SetQueue(ctx context.Context, playlistID string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	IsPlaying(ctx context.Context) bool
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error

	// OnAuthorizationChange registers fn for authorization changes. Only one
	// callback is kept; registering again replaces it.
	OnAuthorizationChange(fn func(authorized bool)) Subscription
}

// Subscription cancels a registered callback.
type Subscription interface {
	Unsubscribe()
}

// FlagStore persists small boolean flags across restarts.
type FlagStore interface {
	GetFlag(ctx context.Context, key string) (value bool, found bool, err error)
	SetFlag(ctx context.Context, key string, value bool) error
}

// SearchCache caches search results by storefront and query.
type SearchCache interface {
	Get(ctx context.Context, storefront, query string, limit int) ([]Playlist, bool)
	Set(ctx context.Context, storefront, query string, limit int, playlists []Playlist)
}
