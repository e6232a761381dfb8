// SoundCloud API implementation of [Adapter]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	soundCloudAuthURL  = "https://soundcloud.com/connect"
	soundCloudTokenURL = "https://api.soundcloud.com/oauth2/token"
	soundCloudBaseURL  = "https://api.soundcloud.com"

	soundCloudPageSize = 200

	// SoundCloud has no albums; liked tracks without a genre get this label.
	soundCloudUnknownAlbum = "Unknown"
)

// legacy timestamp format still returned by some endpoints
const soundCloudTimeLayout = "2006/01/02 15:04:05 -0700"

// SoundCloudUser is the track uploader.
type SoundCloudUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SoundCloudTrack is a track resource.
type SoundCloudTrack struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Genre      string         `json:"genre"`
	ArtworkURL string         `json:"artwork_url"`
	CreatedAt  string         `json:"created_at"`
	User       SoundCloudUser `json:"user"`
}

// SoundCloudTracksPage is a linked-partitioning page of tracks.
type SoundCloudTracksPage struct {
	Collection []SoundCloudTrack `json:"collection"`
	NextHref   string            `json:"next_href"`
}

// SoundCloudAdapter implements [Adapter] for SoundCloud.
type SoundCloudAdapter struct {
	base
	apiURL string
}

// SoundCloudOption customizes a [SoundCloudAdapter].
type SoundCloudOption func(*SoundCloudAdapter)

// WithSoundCloudURLs points the adapter at alternate API and OAuth endpoints.
func WithSoundCloudURLs(apiURL, authURL, tokenURL string) SoundCloudOption {
	return func(a *SoundCloudAdapter) {
		a.apiURL = strings.TrimSuffix(apiURL, "/")
		a.oauth.Endpoint.AuthURL = authURL
		a.oauth.Endpoint.TokenURL = tokenURL
	}
}

// NewSoundCloudAdapter creates a SoundCloud adapter from application credentials.
func NewSoundCloudAdapter(cfg shared.SoundCloudConfig, opts Options, options ...SoundCloudOption) *SoundCloudAdapter {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"non-expiring",
			"liking",
			"playlist-read-private",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:   soundCloudAuthURL,
			TokenURL:  soundCloudTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	a := &SoundCloudAdapter{
		base:   newBase(models.SoundCloud, conf, opts, oauth2.SetAuthURLParam("display", "popup")),
		apiURL: soundCloudBaseURL,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// doRequest performs an authenticated request against endpoint, which is
// either a path or an absolute next_href link.
func (a *SoundCloudAdapter) doRequest(ctx context.Context, token, method, endpoint string, result any) error {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = a.apiURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "OAuth "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Platform: models.SoundCloud, StatusCode: resp.StatusCode}
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			se.Message = errResp.Message
			if se.Message == "" {
				se.Message = errResp.Error
			}
		}
		return se
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// LikedSongs follows next_href through /me/likes/tracks.
func (a *SoundCloudAdapter) LikedSongs(ctx context.Context, p *models.Platform) ([]models.PlatformSong, error) {
	var songs []models.PlatformSong
	endpoint := fmt.Sprintf("/me/likes/tracks?limit=%d&linked_partitioning=true", soundCloudPageSize)

	for endpoint != "" {
		var page SoundCloudTracksPage
		err := a.call(ctx, p, func(ctx context.Context, token string) error {
			return a.doRequest(ctx, token, http.MethodGet, endpoint, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch SoundCloud liked songs: %w", err)
		}

		for _, track := range page.Collection {
			songs = append(songs, a.convert(p, track))
		}
		endpoint = page.NextHref
	}

	a.logger.Debug("fetched liked songs", "count", len(songs))
	return songs, nil
}

// SearchSong returns the top track for query.
func (a *SoundCloudAdapter) SearchSong(ctx context.Context, p *models.Platform, query string) (*models.PlatformSong, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")
	endpoint := "/tracks?" + params.Encode()

	var tracks []SoundCloudTrack
	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		return a.doRequest(ctx, token, http.MethodGet, endpoint, &tracks)
	})
	if err != nil {
		return nil, fmt.Errorf("soundcloud search %q: %w", query, err)
	}

	if len(tracks) == 0 {
		return nil, nil
	}

	song := a.convert(p, tracks[0])
	return &song, nil
}

// AddSongToLibrary likes a track with POST /likes/tracks/{id}.
func (a *SoundCloudAdapter) AddSongToLibrary(ctx context.Context, p *models.Platform, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	endpoint := "/likes/tracks/" + url.PathEscape(externalID)
	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		return a.doRequest(ctx, token, http.MethodPost, endpoint, nil)
	})
	if err != nil {
		return false, fmt.Errorf("soundcloud like track %s: %w", externalID, err)
	}
	return true, nil
}

func (a *SoundCloudAdapter) convert(p *models.Platform, track SoundCloudTrack) models.PlatformSong {
	song := models.PlatformSong{
		Title:        track.Title,
		Artist:       track.User.Username,
		Album:        track.Genre,
		AlbumCover:   track.ArtworkURL,
		ExternalID:   strconv.FormatInt(track.ID, 10),
		PlatformID:   p.ID,
		PlatformType: models.SoundCloud,
	}
	if song.Album == "" {
		song.Album = soundCloudUnknownAlbum
	}
	for _, layout := range []string{time.RFC3339, soundCloudTimeLayout} {
		if t, err := time.Parse(layout, track.CreatedAt); err == nil {
			song.AddedAt = t
			break
		}
	}
	return song
}
