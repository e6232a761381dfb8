package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
)

// OutcomeStatus is what happened to one missing song on one target.
type OutcomeStatus string

const (
	StatusAdded        OutcomeStatus = "added"
	StatusNotFound     OutcomeStatus = "not_found"
	StatusSearchFailed OutcomeStatus = "search_failed"
	StatusAddFailed    OutcomeStatus = "add_failed"
)

// SongOutcome records one missing source song processed against a target.
//
// Err is the search or add failure. For [StatusAdded] it is set only when the
// local record could not be written after the provider accepted the song.
type SongOutcome struct {
	Song   models.PlatformSong  `json:"song"`
	Match  *models.PlatformSong `json:"match,omitempty"`
	Status OutcomeStatus        `json:"status"`
	Err    error                `json:"-"`
}

// TargetResult is the tally for one target platform.
type TargetResult struct {
	Platform   models.PlatformType `json:"platform"`
	PlatformID string              `json:"platform_id"`
	Missing    int                 `json:"missing"`
	SongsAdded int                 `json:"songs_added"`
	Outcomes   []SongOutcome       `json:"outcomes"`
	// Err is set when the target stopped early: its recorded songs could not
	// be loaded, or authorization expired mid-run.
	Err error `json:"-"`
}

// SyncResult contains all data from a sync run.
type SyncResult struct {
	History     *models.SyncHistory `json:"history"`
	SourceSongs int                 `json:"source_songs"`
	Targets     []TargetResult      `json:"targets"`
}

// SongsAdded sums songs added across targets.
func (r *SyncResult) SongsAdded() int {
	total := 0
	for _, t := range r.Targets {
		total += t.SongsAdded
	}
	return total
}

type syncTarget struct {
	platform *models.Platform
	adapter  services.Adapter
}

type syncPlan struct {
	source        *models.Platform
	sourceAdapter services.Adapter
	targets       []syncTarget
}

func (p *syncPlan) targetIDs() []string {
	ids := make([]string, len(p.targets))
	for i, t := range p.targets {
		ids[i] = t.platform.ID
	}
	return ids
}

// Sync copies the user's liked songs from source to each target.
//
// All preconditions are checked before any adapter call. Targets are
// processed in the order given and missing songs in source order. Per-song and
// per-target failures are recorded on the result and never abort the run.
// Cancelling ctx stops before the next song; the partial result is returned
// alongside the error and the run is recorded as failed.
func (e *Engine) Sync(ctx context.Context, userID string, source models.PlatformType, targets []models.PlatformType, progress chan<- ProgressUpdate) (*SyncResult, error) {
	plan, err := e.planSync(ctx, userID, source, targets)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("user", userID, "source", source)
	e.sendProgress(progress, fetchSourceUpdate(plan.sourceAdapter.Name()))

	sourceSongs, err := plan.sourceAdapter.LikedSongs(ctx, plan.source)
	if err != nil {
		logger.Error("failed to fetch source songs", "err", err)
		h := &models.SyncHistory{
			UserID:          userID,
			Type:            models.SyncFull,
			TargetPlatforms: plan.targetIDs(),
			Status:          models.SyncFailed,
		}
		if herr := e.store.CreateSyncHistory(ctx, h); herr != nil {
			logger.Warn("failed to record failed sync", "err", herr)
		}
		e.metrics.SyncRun(string(models.SyncFailed))
		return nil, fmt.Errorf("failed to fetch %s liked songs: %w", plan.sourceAdapter.Name(), err)
	}

	sourceSongs = uniqueSongs(sourceSongs)
	e.sendProgress(progress, foundSourceUpdate(plan.sourceAdapter.Name(), len(sourceSongs)))

	result := &SyncResult{SourceSongs: len(sourceSongs)}
	for i, t := range plan.targets {
		e.sendProgress(progress, loadTargetUpdate(i+1, len(plan.targets), t.adapter.Name()))
		tr := e.syncTarget(ctx, userID, plan.source, t, sourceSongs, progress)
		if tr.Err != nil {
			logger.Warn("target stopped early", "target", t.platform.Type, "err", tr.Err)
			e.sendProgress(progress, targetFailedUpdate(t.adapter.Name(), tr.Err))
		}
		result.Targets = append(result.Targets, tr)
		if ctx.Err() != nil {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return result, e.cancelSync(ctx, logger, result, plan, err)
	}

	result.History = &models.SyncHistory{
		UserID:          userID,
		Type:            models.SyncFull,
		TargetPlatforms: plan.targetIDs(),
		SongsAdded:      result.SongsAdded(),
		Status:          models.SyncCompleted,
	}
	if err := e.store.CreateSyncHistory(ctx, result.History); err != nil {
		return result, fmt.Errorf("failed to record sync history: %w", err)
	}

	e.metrics.SyncRun(string(models.SyncCompleted))
	e.sendProgress(progress, recordHistoryUpdate(result.History))
	logger.Info("sync completed", "added", result.History.SongsAdded, "targets", len(result.Targets))
	return result, nil
}

// cancelSync records an interrupted run as failed, keeping the songs already
// added. The history is written after ctx is done, so its cancellation is
// detached.
func (e *Engine) cancelSync(ctx context.Context, logger *log.Logger, result *SyncResult, plan *syncPlan, cause error) error {
	result.History = &models.SyncHistory{
		UserID:          plan.source.UserID,
		Type:            models.SyncFull,
		TargetPlatforms: plan.targetIDs(),
		SongsAdded:      result.SongsAdded(),
		Status:          models.SyncFailed,
	}
	if err := e.store.CreateSyncHistory(context.WithoutCancel(ctx), result.History); err != nil {
		logger.Warn("failed to record cancelled sync", "err", err)
	}
	e.metrics.SyncRun(string(models.SyncFailed))
	logger.Warn("sync cancelled", "added", result.History.SongsAdded, "targets", len(result.Targets))
	return fmt.Errorf("sync cancelled: %w", cause)
}

// planSync resolves and validates the source and targets.
func (e *Engine) planSync(ctx context.Context, userID string, source models.PlatformType, targets []models.PlatformType) (*syncPlan, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target platform is required", shared.ErrInvalidSyncRequest)
	}

	platforms, err := e.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}
	byType := make(map[models.PlatformType]*models.Platform, len(platforms))
	for _, p := range platforms {
		byType[p.Type] = p
	}

	resolve := func(role string, t models.PlatformType) (*models.Platform, services.Adapter, error) {
		p, ok := byType[t]
		if !ok || !p.IsConnected {
			return nil, nil, fmt.Errorf("%w: %s platform %q is not connected", shared.ErrInvalidSyncRequest, role, t)
		}
		a, err := e.registry.Get(t)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", shared.ErrInvalidSyncRequest, err)
		}
		return p, a, nil
	}

	plan := &syncPlan{}
	if plan.source, plan.sourceAdapter, err = resolve("source", source); err != nil {
		return nil, err
	}

	seen := make(map[models.PlatformType]bool, len(targets))
	for _, t := range targets {
		if t == source {
			return nil, fmt.Errorf("%w: target %q is the source platform", shared.ErrInvalidSyncRequest, t)
		}
		if seen[t] {
			return nil, fmt.Errorf("%w: target %q listed more than once", shared.ErrInvalidSyncRequest, t)
		}
		seen[t] = true

		p, a, err := resolve("target", t)
		if err != nil {
			return nil, err
		}
		plan.targets = append(plan.targets, syncTarget{platform: p, adapter: a})
	}
	return plan, nil
}

func (e *Engine) syncTarget(ctx context.Context, userID string, source *models.Platform, t syncTarget, sourceSongs []models.PlatformSong, progress chan<- ProgressUpdate) TargetResult {
	res := TargetResult{Platform: t.platform.Type, PlatformID: t.platform.ID}
	name := t.adapter.Name()

	recorded, err := e.store.GetSongsByUserIDAndPlatform(ctx, userID, t.platform.ID)
	if err != nil {
		res.Err = fmt.Errorf("failed to load songs recorded for %s: %w", name, err)
		return res
	}

	missing := ComputeMissing(sourceSongs, recorded)
	if e.liveTargets && len(missing) > 0 {
		live, err := t.adapter.LikedSongs(ctx, t.platform)
		switch {
		case errors.Is(err, shared.ErrAuthExpired):
			res.Err = err
			return res
		case err != nil:
			e.logger.Warn("live target fetch failed, using recorded songs", "target", t.platform.Type, "err", err)
		default:
			missing = ComputeMissing(missing, live)
		}
	}

	res.Missing = len(missing)
	e.sendProgress(progress, compareUpdate(name, len(missing), len(sourceSongs)))

	for i, song := range missing {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		outcome := e.syncSong(ctx, userID, source, t, song)
		if outcome.Status != StatusAdded && ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		res.Outcomes = append(res.Outcomes, outcome)
		if outcome.Status == StatusAdded {
			res.SongsAdded++
		}

		e.metrics.SongOutcome(string(t.platform.Type), string(outcome.Status))
		e.sendProgress(progress, addSongUpdate(i+1, len(missing), name, outcome))

		if outcome.Status != StatusAdded && errors.Is(outcome.Err, shared.ErrAuthExpired) {
			res.Err = outcome.Err
			break
		}
	}
	return res
}

// syncSong searches for song on the target, adds the top match and records
// the song tagged with both platforms.
func (e *Engine) syncSong(ctx context.Context, userID string, source *models.Platform, t syncTarget, song models.PlatformSong) SongOutcome {
	outcome := SongOutcome{Song: song}
	logger := e.logger.With("target", t.platform.Type, "title", song.Title, "artist", song.Artist)

	match, err := t.adapter.SearchSong(ctx, t.platform, song.Title+" "+song.Artist)
	if err != nil {
		logger.Debug("search failed", "err", err)
		outcome.Status, outcome.Err = StatusSearchFailed, err
		return outcome
	}
	if match == nil {
		outcome.Status = StatusNotFound
		return outcome
	}
	outcome.Match = match

	ok, err := t.adapter.AddSongToLibrary(ctx, t.platform, match.ExternalID)
	if !ok {
		logger.Debug("add failed", "external_id", match.ExternalID, "err", err)
		outcome.Status, outcome.Err = StatusAddFailed, err
		return outcome
	}

	outcome.Status = StatusAdded
	if _, err := e.recordSong(context.WithoutCancel(ctx), userID, song, source.ID, t.platform.ID); err != nil {
		logger.Warn("song added but not recorded", "err", err)
		outcome.Err = err
	}
	return outcome
}

// recordSong upserts the user's song and tags it with platformIDs. It reports
// whether a row was created or gained a tag. A unique conflict on create means
// a concurrent run recorded the song first, so the row is re-read and tagged.
func (e *Engine) recordSong(ctx context.Context, userID string, song models.PlatformSong, platformIDs ...string) (bool, error) {
	existing, err := e.store.FindSong(ctx, userID, song.Title, song.Artist)
	switch {
	case err == nil:
		return e.tagSong(ctx, existing, platformIDs)
	case !errors.Is(err, shared.ErrNotFound):
		return false, err
	}

	addedAt := song.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	created := &models.Song{
		UserID:     userID,
		Title:      song.Title,
		Artist:     song.Artist,
		Album:      song.Album,
		AlbumCover: song.AlbumCover,
		Platforms:  platformIDs,
		AddedAt:    addedAt,
	}
	err = e.store.CreateSong(ctx, created)
	if !errors.Is(err, shared.ErrConflict) {
		return err == nil, err
	}

	existing, err = e.store.FindSong(ctx, userID, song.Title, song.Artist)
	if err != nil {
		return false, err
	}
	return e.tagSong(ctx, existing, platformIDs)
}

func (e *Engine) tagSong(ctx context.Context, s *models.Song, platformIDs []string) (bool, error) {
	if !s.AddPlatforms(platformIDs...) {
		return false, nil
	}
	if err := e.store.UpdateSong(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// uniqueSongs drops later duplicates by song identity, keeping order.
func uniqueSongs(songs []models.PlatformSong) []models.PlatformSong {
	seen := make(map[string]struct{}, len(songs))
	out := make([]models.PlatformSong, 0, len(songs))
	for _, s := range songs {
		key := SongKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
