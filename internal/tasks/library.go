package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// MissingOnPlatform lists the recorded songs not yet tagged with a platform.
type MissingOnPlatform struct {
	PlatformID   string              `json:"platform_id"`
	PlatformType models.PlatformType `json:"platform_type"`
	Songs        []*models.Song      `json:"songs"`
}

// ListSongs returns the user's recorded songs, newest first. A non-empty
// platform restricts them to songs tagged with the user's platform of that type.
func (e *Engine) ListSongs(ctx context.Context, userID string, platform models.PlatformType) ([]*models.Song, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if platform == "" {
		return e.store.GetSongsByUserID(ctx, userID)
	}

	platforms, err := e.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}
	for _, p := range platforms {
		if p.Type == platform {
			return e.store.GetSongsByUserIDAndPlatform(ctx, userID, p.ID)
		}
	}
	return nil, fmt.Errorf("%w: no %s platform for user", shared.ErrNotFound, platform.DisplayName())
}

// MissingSongs reports, for each connected platform, the recorded songs not
// tagged with it. At least two connected platforms are required.
func (e *Engine) MissingSongs(ctx context.Context, userID string) ([]MissingOnPlatform, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	platforms, err := e.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}
	connected := slices.DeleteFunc(platforms, func(p *models.Platform) bool { return !p.IsConnected })
	if len(connected) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 connected platforms to compare", shared.ErrInvalidInput)
	}

	songs, err := e.store.GetSongsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}

	missing := make([]MissingOnPlatform, 0, len(connected))
	for _, p := range connected {
		m := MissingOnPlatform{PlatformID: p.ID, PlatformType: p.Type, Songs: []*models.Song{}}
		for _, s := range songs {
			if !s.HasPlatform(p.ID) {
				m.Songs = append(m.Songs, s)
			}
		}
		missing = append(missing, m)
	}
	return missing, nil
}

// LibrarySongs fetches live liked songs from the user's connected platforms,
// or only the one of type platform when it is non-empty, newest first.
// Platforms that fail are logged and skipped.
func (e *Engine) LibrarySongs(ctx context.Context, userID string, platform models.PlatformType, progress chan<- ProgressUpdate) ([]models.PlatformSong, error) {
	platforms, err := e.connectedPlatforms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if platform != "" {
		platforms = slices.DeleteFunc(platforms, func(p *models.Platform) bool { return p.Type != platform })
	}

	var songs []models.PlatformSong
	for i, p := range platforms {
		adapter, err := e.registry.Get(p.Type)
		if err != nil {
			continue
		}
		e.sendProgress(progress, fetchLibraryUpdate(i+1, len(platforms), adapter.Name()))

		liked, err := adapter.LikedSongs(ctx, p)
		if err != nil {
			e.logger.Warn("failed to fetch liked songs", "user", userID, "platform", p.Type, "err", err)
			continue
		}
		songs = append(songs, liked...)
	}

	slices.SortStableFunc(songs, func(a, b models.PlatformSong) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	return songs, nil
}

// History returns the user's sync runs, most recent first.
func (e *Engine) History(ctx context.Context, userID string) ([]*models.SyncHistory, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	history, err := e.store.GetSyncHistoryByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(history, func(a, b *models.SyncHistory) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return history, nil
}
