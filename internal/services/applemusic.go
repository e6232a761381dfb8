// Apple Music API implementation of [Adapter]
//
// Apple Music API response types based on https://developer.apple.com/documentation/applemusicapi
package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"
)

const (
	appleMusicAuthURL  = "https://appleid.apple.com/auth/authorize"
	appleMusicTokenURL = "https://appleid.apple.com/auth/token"
	appleMusicBaseURL  = "https://api.music.apple.com"

	appleMusicPageSize     = 100
	appleMusicArtworkSize  = "500"
	appleMusicTokenTTL     = 180*24*time.Hour - time.Hour
	appleMusicTokenRenewal = 5 * time.Minute
)

// AppleMusicArtwork is an artwork resource with a {w}x{h} URL template.
type AppleMusicArtwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AppleMusicSongAttributes are the attributes shared by library and catalog songs.
type AppleMusicSongAttributes struct {
	Name       string             `json:"name"`
	ArtistName string             `json:"artistName"`
	AlbumName  string             `json:"albumName"`
	Artwork    *AppleMusicArtwork `json:"artwork"`
	DateAdded  string             `json:"dateAdded"`
}

// AppleMusicSong is a library-songs or songs resource.
type AppleMusicSong struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Attributes AppleMusicSongAttributes `json:"attributes"`
}

// AppleMusicSongsResponse is a paginated songs response.
type AppleMusicSongsResponse struct {
	Data []AppleMusicSong `json:"data"`
	Next string           `json:"next"`
}

// AppleMusicSearchResponse is the catalog search response.
type AppleMusicSearchResponse struct {
	Results struct {
		Songs *AppleMusicSongsResponse `json:"songs"`
	} `json:"results"`
}

type appleMusicErrorResponse struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// AppleMusicAdapter implements [Adapter] for Apple Music.
//
// Requests carry the developer token as a bearer token and the platform's
// access token as the Music-User-Token.
type AppleMusicAdapter struct {
	base
	apiURL     string
	storefront string

	staticToken    string
	teamID         string
	keyID          string
	privateKeyPath string

	mu           sync.RWMutex
	cachedToken  string
	cachedExpiry time.Time
}

// AppleMusicOption customizes an [AppleMusicAdapter].
type AppleMusicOption func(*AppleMusicAdapter)

// WithAppleMusicURLs points the adapter at alternate API and OAuth endpoints.
func WithAppleMusicURLs(apiURL, authURL, tokenURL string) AppleMusicOption {
	return func(a *AppleMusicAdapter) {
		a.apiURL = strings.TrimSuffix(apiURL, "/")
		a.oauth.Endpoint.AuthURL = authURL
		a.oauth.Endpoint.TokenURL = tokenURL
	}
}

// NewAppleMusicAdapter creates an Apple Music adapter from application credentials.
func NewAppleMusicAdapter(cfg shared.AppleMusicConfig, opts Options, options ...AppleMusicOption) *AppleMusicAdapter {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"user-library-read",
			"user-library-modify",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:   appleMusicAuthURL,
			TokenURL:  appleMusicTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	storefront := cfg.Storefront
	if storefront == "" {
		storefront = "us"
	}

	a := &AppleMusicAdapter{
		base:           newBase(models.AppleMusic, conf, opts, oauth2.SetAuthURLParam("response_mode", "form_post")),
		apiURL:         appleMusicBaseURL,
		storefront:     storefront,
		staticToken:    cfg.DeveloperToken,
		teamID:         cfg.TeamID,
		keyID:          cfg.KeyID,
		privateKeyPath: cfg.PrivateKeyPath,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// DeveloperToken returns the configured developer token, or a cached ES256
// token signed with the configured .p8 key.
func (a *AppleMusicAdapter) DeveloperToken() (string, error) {
	if a.staticToken != "" {
		return a.staticToken, nil
	}

	a.mu.RLock()
	if a.cachedToken != "" && time.Until(a.cachedExpiry) > appleMusicTokenRenewal {
		token := a.cachedToken
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	if a.teamID == "" || a.keyID == "" {
		return "", fmt.Errorf("%w: apple music team_id and key_id are required", shared.ErrMissingCredentials)
	}

	key, err := loadECPrivateKey(a.privateKeyPath)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	exp := now.Add(appleMusicTokenTTL)

	unsigned, err := jwt.NewBuilder().
		Issuer(a.teamID).
		IssuedAt(now).
		Expiration(exp).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build developer token: %w", err)
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.KeyIDKey, a.keyID); err != nil {
		return "", fmt.Errorf("failed to set key id: %w", err)
	}

	signed, err := jwt.Sign(unsigned, jwt.WithKey(jwa.ES256, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}

	a.mu.Lock()
	a.cachedToken = string(signed)
	a.cachedExpiry = exp
	a.mu.Unlock()

	return string(signed), nil
}

func loadECPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: apple music private_key_path is required", shared.ErrMissingCredentials)
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil || len(block.Bytes) == 0 {
		return nil, fmt.Errorf("%w: invalid PEM data for private key", shared.ErrInvalidConfig)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %v", shared.ErrInvalidConfig, err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not ECDSA", shared.ErrInvalidConfig)
	}
	return key, nil
}

// doRequest performs an authenticated request. endpoint is either a path
// ("/v1/...") or a relative "next" link returned by the API.
func (a *AppleMusicAdapter) doRequest(ctx context.Context, userToken, method, endpoint string, result any) error {
	devToken, err := a.DeveloperToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, a.apiURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+devToken)
	req.Header.Set("Music-User-Token", userToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Platform: models.AppleMusic, StatusCode: resp.StatusCode}
		var errResp appleMusicErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && len(errResp.Errors) > 0 {
			se.Message = errResp.Errors[0].Title
			if d := errResp.Errors[0].Detail; d != "" {
				se.Message += ": " + d
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

// LikedSongs pages through /v1/me/library/songs 100 at a time.
func (a *AppleMusicAdapter) LikedSongs(ctx context.Context, p *models.Platform) ([]models.PlatformSong, error) {
	var songs []models.PlatformSong
	endpoint := fmt.Sprintf("/v1/me/library/songs?limit=%d", appleMusicPageSize)

	for endpoint != "" {
		var page AppleMusicSongsResponse
		err := a.call(ctx, p, func(ctx context.Context, token string) error {
			return a.doRequest(ctx, token, http.MethodGet, endpoint, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch Apple Music liked songs: %w", err)
		}

		for _, item := range page.Data {
			songs = append(songs, a.convert(p, item))
		}
		endpoint = a.nextEndpoint(page.Next)
	}

	a.logger.Debug("fetched liked songs", "count", len(songs))
	return songs, nil
}

// nextEndpoint turns a "next" link into a path relative to the API root.
// Apple returns "/v1/me/library/songs?offset=100"; absolute URLs are reduced
// to their path and query.
func (a *AppleMusicAdapter) nextEndpoint(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Get("limit") == "" {
		q.Set("limit", fmt.Sprint(appleMusicPageSize))
	}
	return u.Path + "?" + q.Encode()
}

// SearchSong returns the top catalog song for query.
func (a *AppleMusicAdapter) SearchSong(ctx context.Context, p *models.Platform, query string) (*models.PlatformSong, error) {
	params := url.Values{}
	params.Set("term", query)
	params.Set("types", "songs")
	params.Set("limit", "1")
	endpoint := fmt.Sprintf("/v1/catalog/%s/search?%s", url.PathEscape(a.storefront), params.Encode())

	var result AppleMusicSearchResponse
	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		return a.doRequest(ctx, token, http.MethodGet, endpoint, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("apple music search %q: %w", query, err)
	}

	if result.Results.Songs == nil || len(result.Results.Songs.Data) == 0 {
		return nil, nil
	}

	song := a.convert(p, result.Results.Songs.Data[0])
	return &song, nil
}

// AddSongToLibrary adds a catalog song with POST /v1/me/library?ids[songs]=.
func (a *AppleMusicAdapter) AddSongToLibrary(ctx context.Context, p *models.Platform, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	params := url.Values{}
	params.Set("ids[songs]", externalID)
	endpoint := "/v1/me/library?" + params.Encode()

	err := a.call(ctx, p, func(ctx context.Context, token string) error {
		return a.doRequest(ctx, token, http.MethodPost, endpoint, nil)
	})
	if err != nil {
		return false, fmt.Errorf("apple music add song %s: %w", externalID, err)
	}
	return true, nil
}

func (a *AppleMusicAdapter) convert(p *models.Platform, item AppleMusicSong) models.PlatformSong {
	song := models.PlatformSong{
		Title:        item.Attributes.Name,
		Artist:       item.Attributes.ArtistName,
		Album:        item.Attributes.AlbumName,
		ExternalID:   item.ID,
		PlatformID:   p.ID,
		PlatformType: models.AppleMusic,
	}
	if item.Attributes.Artwork != nil {
		song.AlbumCover = strings.NewReplacer("{w}", appleMusicArtworkSize, "{h}", appleMusicArtworkSize).
			Replace(item.Attributes.Artwork.URL)
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, item.Attributes.DateAdded); err == nil {
			song.AddedAt = t
			break
		}
	}
	return song
}
