package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// PlatformImport is the import tally for one platform.
type PlatformImport struct {
	Type       models.PlatformType `json:"platform"`
	PlatformID string              `json:"platform_id"`
	Imported   int                 `json:"imported"`
	Total      int                 `json:"total"`
	Err        error               `json:"-"`
}

// ImportResult contains per-platform import tallies.
type ImportResult struct {
	Platforms []PlatformImport `json:"platforms"`
}

// Imported sums newly recorded songs across platforms.
func (r *ImportResult) Imported() int {
	total := 0
	for _, p := range r.Platforms {
		total += p.Imported
	}
	return total
}

// ImportAll records every connected platform's liked songs locally, tagging
// each song with the platform it came from. Nothing is written to providers.
// A platform whose fetch fails is logged and skipped.
func (e *Engine) ImportAll(ctx context.Context, userID string, progress chan<- ProgressUpdate) (*ImportResult, error) {
	platforms, err := e.connectedPlatforms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no connected platforms found", shared.ErrInvalidInput)
	}

	result := &ImportResult{}
	for i, p := range platforms {
		e.sendProgress(progress, importPlatformUpdate(i+1, len(platforms), p.Type.DisplayName()))

		res := e.importPlatform(ctx, userID, p)
		if res.Err != nil {
			e.logger.Error("import failed", "user", userID, "platform", p.Type, "err", res.Err)
		}
		e.metrics.Imported(string(p.Type), res.Imported)
		e.sendProgress(progress, importedPlatformUpdate(i+1, len(platforms), res))
		result.Platforms = append(result.Platforms, res)
	}

	e.logger.Info("import completed", "user", userID, "imported", result.Imported())
	return result, nil
}

func (e *Engine) importPlatform(ctx context.Context, userID string, p *models.Platform) PlatformImport {
	res := PlatformImport{Type: p.Type, PlatformID: p.ID}

	adapter, err := e.registry.Get(p.Type)
	if err != nil {
		res.Err = err
		return res
	}

	songs, err := adapter.LikedSongs(ctx, p)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch %s liked songs: %w", adapter.Name(), err)
		return res
	}
	res.Total = len(songs)

	recorded, err := e.store.GetSongsByUserIDAndPlatform(ctx, userID, p.ID)
	if err != nil {
		res.Err = fmt.Errorf("failed to load recorded songs: %w", err)
		return res
	}

	tagged := make(map[string]bool, len(recorded))
	for _, s := range recorded {
		tagged[SongKey(s)] = true
	}

	for _, song := range songs {
		key := SongKey(song)
		if tagged[key] {
			continue
		}

		changed, err := e.recordSong(ctx, userID, song, p.ID)
		if err != nil {
			e.logger.Warn("failed to record song", "platform", p.Type, "title", song.Title, "err", err)
			continue
		}
		tagged[key] = true
		if changed {
			res.Imported++
		}
	}
	return res
}
