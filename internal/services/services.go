package services

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// Adapter is the capability surface of one streaming provider.
//
// Adapters are stateless with respect to users: credentials are read from and
// refreshed onto the [models.Platform] passed to each call.
type Adapter interface {
	// Type returns the provider this adapter talks to.
	Type() models.PlatformType

	// Name returns a display name (e.g., "Spotify").
	Name() string

	// AuthURL builds the provider authorization URL embedding state and the
	// library read/modify scopes.
	AuthURL(state string) string

	// HandleCallback exchanges an authorization code for a token pair.
	HandleCallback(ctx context.Context, code string) (*models.Credentials, error)

	// Connect upserts the user's platform row with the token pair and marks it connected.
	Connect(ctx context.Context, userID, accessToken, refreshToken string) (*models.Platform, error)

	// Disconnect marks the user's platform row disconnected and clears its
	// credentials. It is a no-op when no row exists.
	Disconnect(ctx context.Context, userID string) error

	// LikedSongs fetches the full liked-songs catalog, following pagination.
	LikedSongs(ctx context.Context, p *models.Platform) ([]models.PlatformSong, error)

	// SearchSong returns the top search result for query, or nil when there is none.
	SearchSong(ctx context.Context, p *models.Platform, query string) (*models.PlatformSong, error)

	// AddSongToLibrary saves externalID to the user's library. It returns
	// false for an empty ID and false with a descriptive error when the
	// provider refuses; false means "could not add".
	AddSongToLibrary(ctx context.Context, p *models.Platform, externalID string) (bool, error)
}

// Options carries the dependencies shared by all adapters.
type Options struct {
	// Store persists connection changes and refreshed tokens.
	Store models.PlatformUpdater
	// HTTPClient is used for every provider call, including token endpoints.
	HTTPClient *http.Client
	// CallTimeout bounds each provider call. Zero means no timeout.
	CallTimeout time.Duration
	Logger      *log.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// Registry maps provider types to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	adapters map[models.PlatformType]Adapter
}

// NewRegistry registers adapters by their [Adapter.Type]. A later adapter for
// the same type replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.PlatformType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Type()] = a
	}
	return r
}

// Get returns the adapter for t.
func (r *Registry) Get(t models.PlatformType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for %q", shared.ErrUnknownPlatform, t)
	}
	return a, nil
}

// Has reports whether an adapter is registered for t.
func (r *Registry) Has(t models.PlatformType) bool {
	_, ok := r.adapters[t]
	return ok
}

// Types lists registered provider types in [models.AllPlatformTypes] order.
func (r *Registry) Types() []models.PlatformType {
	var types []models.PlatformType
	for _, t := range models.AllPlatformTypes() {
		if r.Has(t) {
			types = append(types, t)
		}
	}
	for t := range r.adapters {
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return types
}

// NewRegistryFromConfig builds the registry with every provider that has a
// client ID configured.
func NewRegistryFromConfig(cfg shared.CredentialsConfig, opts Options) *Registry {
	var adapters []Adapter
	if cfg.Spotify.ClientID != "" {
		adapters = append(adapters, NewSpotifyAdapter(cfg.Spotify, opts))
	}
	if cfg.AppleMusic.ClientID != "" || cfg.AppleMusic.DeveloperToken != "" {
		adapters = append(adapters, NewAppleMusicAdapter(cfg.AppleMusic, opts))
	}
	if cfg.SoundCloud.ClientID != "" {
		adapters = append(adapters, NewSoundCloudAdapter(cfg.SoundCloud, opts))
	}
	return NewRegistry(adapters...)
}
