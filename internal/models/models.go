// package models defines the data model for the liked-songs sync service
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/musync/internal/shared"
)

// PlatformType identifies a streaming provider.
type PlatformType string

const (
	Spotify    PlatformType = "spotify"
	AppleMusic PlatformType = "apple_music"
	SoundCloud PlatformType = "soundcloud"
)

// AllPlatformTypes lists every known provider in display order.
func AllPlatformTypes() []PlatformType {
	return []PlatformType{Spotify, AppleMusic, SoundCloud}
}

// ParsePlatformType accepts the canonical names plus a few common spellings
// ("apple-music", "applemusic", "Spotify").
func ParsePlatformType(s string) (PlatformType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch v {
	case "spotify":
		return Spotify, nil
	case "apple_music", "applemusic", "apple":
		return AppleMusic, nil
	case "soundcloud", "sound_cloud":
		return SoundCloud, nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrUnknownPlatform, s)
}

// Valid reports whether t names a known provider.
func (t PlatformType) Valid() bool {
	return slices.Contains(AllPlatformTypes(), t)
}

// DisplayName returns the provider's marketing name.
func (t PlatformType) DisplayName() string {
	switch t {
	case Spotify:
		return "Spotify"
	case AppleMusic:
		return "Apple Music"
	case SoundCloud:
		return "SoundCloud"
	}
	return string(t)
}

func (t PlatformType) String() string { return string(t) }

// User owns platforms, songs and sync history.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks required user fields.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password hash is required", shared.ErrInvalidInput)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q", shared.ErrInvalidInput, u.Email)
	}
	return nil
}

// Platform is one provider connection for a user. There is at most one per
// (UserID, Type).
type Platform struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Type         PlatformType `json:"type"`
	IsConnected  bool         `json:"is_connected"`
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	ConnectedAt  *time.Time   `json:"connected_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks required platform fields.
func (p *Platform) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: platform user id is required", shared.ErrInvalidInput)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownPlatform, p.Type)
	}
	return nil
}

// Song is a user's library entry, identified by normalized title and artist.
// Platforms holds the IDs of the platforms the song is known to exist on.
type Song struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	AlbumCover string    `json:"album_cover,omitempty"`
	Platforms  []string  `json:"platforms"`
	AddedAt    time.Time `json:"added_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks required song fields. A blank title or artist is allowed
// since providers return them for local files and untagged uploads.
func (s *Song) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("%w: song user id is required", shared.ErrInvalidInput)
	}
	return nil
}

// Identity returns the song's raw title and artist.
func (s *Song) Identity() (title, artist string) { return s.Title, s.Artist }

// HasPlatform reports whether the song is tagged with platformID.
func (s *Song) HasPlatform(platformID string) bool {
	return slices.Contains(s.Platforms, platformID)
}

// AddPlatforms tags the song with ids it does not carry yet and reports
// whether anything changed.
func (s *Song) AddPlatforms(ids ...string) bool {
	changed := false
	for _, id := range ids {
		if id == "" || s.HasPlatform(id) {
			continue
		}
		s.Platforms = append(s.Platforms, id)
		changed = true
	}
	return changed
}

// SyncType is the kind of a sync run.
type SyncType string

const (
	SyncFull    SyncType = "full"
	SyncPartial SyncType = "partial"
)

// SyncStatus is the outcome of a sync run.
type SyncStatus string

const (
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncHistory is the immutable record of one sync run.
type SyncHistory struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Type            SyncType   `json:"type"`
	TargetPlatforms []string   `json:"target_platforms"`
	SongsAdded      int        `json:"songs_added"`
	Status          SyncStatus `json:"status"`
	CompletedAt     time.Time  `json:"completed_at"`
}

// PlatformSong is a track as reported by a provider. It is never persisted.
type PlatformSong struct {
	Title        string       `json:"title"`
	Artist       string       `json:"artist"`
	Album        string       `json:"album,omitempty"`
	AlbumCover   string       `json:"album_cover,omitempty"`
	ExternalID   string       `json:"external_id"`
	PlatformID   string       `json:"platform_id,omitempty"`
	PlatformType PlatformType `json:"platform_type,omitempty"`
	AddedAt      time.Time    `json:"added_at"`
}

// Identity returns the track's raw title and artist.
func (s PlatformSong) Identity() (title, artist string) { return s.Title, s.Artist }

// Credentials is the token pair returned by an OAuth code exchange.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
