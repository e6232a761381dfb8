package models

import "context"

// Store is the persistence contract consumed by the adapters and engines.
//
// Lookup misses wrap [shared.ErrNotFound]. Unique violations on
// (user, platform type) and (user, normalized title, normalized artist) wrap
// [shared.ErrConflict].
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error

	GetPlatformsByUserID(ctx context.Context, userID string) ([]*Platform, error)
	GetPlatform(ctx context.Context, id string) (*Platform, error)
	CreatePlatform(ctx context.Context, p *Platform) error
	UpdatePlatform(ctx context.Context, p *Platform) error

	GetSongsByUserID(ctx context.Context, userID string) ([]*Song, error)
	GetSongsByUserIDAndPlatform(ctx context.Context, userID, platformID string) ([]*Song, error)
	// FindSong looks a song up by its normalized title and artist.
	FindSong(ctx context.Context, userID, title, artist string) (*Song, error)
	CreateSong(ctx context.Context, s *Song) error
	// UpdateSong rewrites song metadata and adds any new platform tags. Tags
	// are never removed.
	UpdateSong(ctx context.Context, s *Song) error

	GetSyncHistoryByUserID(ctx context.Context, userID string) ([]*SyncHistory, error)
	CreateSyncHistory(ctx context.Context, h *SyncHistory) error
}

// PlatformUpdater is the slice of [Store] adapters need to persist connection
// state and refreshed tokens.
type PlatformUpdater interface {
	GetPlatformsByUserID(ctx context.Context, userID string) ([]*Platform, error)
	CreatePlatform(ctx context.Context, p *Platform) error
	UpdatePlatform(ctx context.Context, p *Platform) error
}
