// Spotify Web API implementation of [Adapter]
//
// Library and search calls go through github.com/zmb3/spotify/v2.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1/"

	spotifyPageSize = 50
)

// SpotifyAdapter implements [Adapter] for Spotify.
type SpotifyAdapter struct {
	base
	apiURL string
}

// SpotifyOption customizes a [SpotifyAdapter].
type SpotifyOption func(*SpotifyAdapter)

// WithSpotifyURLs points the adapter at alternate API and OAuth endpoints.
// apiURL must end with a slash.
func WithSpotifyURLs(apiURL, authURL, tokenURL string) SpotifyOption {
	return func(a *SpotifyAdapter) {
		a.apiURL = apiURL
		a.oauth.Endpoint.AuthURL = authURL
		a.oauth.Endpoint.TokenURL = tokenURL
	}
}

// NewSpotifyAdapter creates a Spotify adapter from application credentials.
func NewSpotifyAdapter(cfg shared.SpotifyConfig, opts Options, options ...SpotifyOption) *SpotifyAdapter {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"user-read-email",
			"user-read-private",
			"user-library-read",
			"user-library-modify",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  spotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	a := &SpotifyAdapter{
		base:   newBase(models.Spotify, conf, opts, oauth2.SetAuthURLParam("show_dialog", "true")),
		apiURL: spotifyBaseURL,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// api returns a client authorized with token.
func (a *SpotifyAdapter) api(ctx context.Context, token string) *spotify.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return spotify.New(oauth2.NewClient(a.oauthContext(ctx), src), spotify.WithBaseURL(a.apiURL))
}

// LikedSongs pages through /me/tracks 50 at a time.
func (a *SpotifyAdapter) LikedSongs(ctx context.Context, p *models.Platform) ([]models.PlatformSong, error) {
	var page *spotify.SavedTrackPage
	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		var err error
		page, err = a.api(ctx, token).CurrentUsersTracks(ctx, spotify.Limit(spotifyPageSize))
		return a.wrapErr(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Spotify liked songs: %w", err)
	}

	songs := make([]models.PlatformSong, 0, page.Total)
	for {
		for _, item := range page.Tracks {
			songs = append(songs, a.convert(p, item.FullTrack, item.AddedAt))
		}

		done := false
		err := a.call(ctx, p, func(ctx context.Context, token string) error {
			err := a.api(ctx, token).NextPage(ctx, page)
			if errors.Is(err, spotify.ErrNoMorePages) {
				done = true
				return nil
			}
			return a.wrapErr(err)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch Spotify liked songs page: %w", err)
		}
		if done {
			break
		}
	}

	a.logger.Debug("fetched liked songs", "count", len(songs))
	return songs, nil
}

// SearchSong returns the top track result for query.
func (a *SpotifyAdapter) SearchSong(ctx context.Context, p *models.Platform, query string) (*models.PlatformSong, error) {
	var result *spotify.SearchResult
	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		var err error
		result, err = a.api(ctx, token).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
		return a.wrapErr(err)
	})
	if err != nil {
		return nil, fmt.Errorf("spotify search %q: %w", query, err)
	}

	if result == nil || result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}

	song := a.convert(p, result.Tracks.Tracks[0], "")
	return &song, nil
}

// AddSongToLibrary saves a track with PUT /me/tracks.
func (a *SpotifyAdapter) AddSongToLibrary(ctx context.Context, p *models.Platform, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		return a.wrapErr(a.api(ctx, token).AddTracksToLibrary(ctx, spotify.ID(externalID)))
	})
	if err != nil {
		return false, fmt.Errorf("spotify save track %s: %w", externalID, err)
	}
	return true, nil
}

func (a *SpotifyAdapter) convert(p *models.Platform, track spotify.FullTrack, addedAt string) models.PlatformSong {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	song := models.PlatformSong{
		Title:        track.Name,
		Artist:       strings.Join(artists, ", "),
		Album:        track.Album.Name,
		ExternalID:   track.ID.String(),
		PlatformID:   p.ID,
		PlatformType: models.Spotify,
	}
	if len(track.Album.Images) > 0 {
		song.AlbumCover = track.Album.Images[0].URL
	}
	if addedAt != "" {
		if t, err := time.Parse(time.RFC3339, addedAt); err == nil {
			song.AddedAt = t
		}
	}
	return song
}

// wrapErr converts [spotify.Error] into [StatusError] so the shared retry
// policy can see the status code.
func (a *SpotifyAdapter) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return &StatusError{Platform: models.Spotify, StatusCode: se.Status, Message: se.Message}
	}
	return err
}
