package tasks

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/musync/internal/formatter"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// ExportOpts contains configuration for library exports.
type ExportOpts struct {
	Format     string              // Export format: text, csv, markdown, json
	OutputDir  string              // Base output directory (default: musync_export_{epoch})
	NumWorkers int                 // Concurrent platform fetches (default: 3)
	Platform   models.PlatformType // Export only this platform when set
}

// PlatformExportResult is the outcome of exporting one platform's liked songs.
type PlatformExportResult struct {
	Platform models.PlatformType
	Songs    int
	Files    []string
	Err      error
}

// ExportResult summarizes a library export.
type ExportResult struct {
	OutputDirectory string
	ManifestPath    string
	Results         []PlatformExportResult
	Successful      int
	Failed          int
}

// ExportLibrary writes each connected platform's live liked songs to its own
// file under opts.OutputDir, fetching platforms concurrently, and finishes with
// manifest.json. A platform that fails is recorded and the rest
// continue.
func (e *Engine) ExportLibrary(ctx context.Context, userID string, opts ExportOpts, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !slices.Contains(formatter.Formats, opts.Format) {
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("musync_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}

	platforms, err := e.connectedPlatforms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if opts.Platform != "" {
		platforms = slices.DeleteFunc(platforms, func(p *models.Platform) bool { return p.Type != opts.Platform })
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no connected platforms to export", shared.ErrInvalidInput)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := make(chan *models.Platform, len(platforms))
	results := make(chan PlatformExportResult, len(platforms))

	var wg sync.WaitGroup
	for range min(opts.NumWorkers, len(platforms)) {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	for i, p := range platforms {
		e.sendProgress(progress, fetchLibraryUpdate(i+1, len(platforms), p.Type.DisplayName()))
		jobs <- p
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &ExportResult{
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlatformExportResult, 0, len(platforms)),
	}

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Err == nil {
			result.Successful++
			e.sendProgress(progress, exportCompletedUpdate(completed, len(platforms), res.Platform.DisplayName(), res.Songs))
		} else {
			result.Failed++
			e.logger.Warn("export failed", "user", userID, "platform", res.Platform, "err", res.Err)
			e.sendProgress(progress, exportFailedUpdate(completed, len(platforms), res.Platform.DisplayName(), res.Err))
		}
	}

	slices.SortFunc(result.Results, func(a, b PlatformExportResult) int {
		return cmp.Compare(a.Platform, b.Platform)
	})

	manifestPath := filepath.Join(opts.OutputDir, "manifest.json")
	if err := formatter.WriteManifest(manifestFor(result, opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker exports platforms from the jobs channel until it closes.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan *models.Platform,
	results chan<- PlatformExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for p := range jobs {
		if ctx.Err() != nil {
			results <- PlatformExportResult{Platform: p.Type, Err: ctx.Err()}
			continue
		}
		results <- e.exportPlatform(ctx, p, opts)
	}
}

func (e *Engine) exportPlatform(ctx context.Context, p *models.Platform, opts ExportOpts) PlatformExportResult {
	res := PlatformExportResult{Platform: p.Type}

	adapter, err := e.registry.Get(p.Type)
	if err != nil {
		res.Err = err
		return res
	}

	songs, err := adapter.LikedSongs(ctx, p)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch liked songs: %w", err)
		return res
	}
	slices.SortStableFunc(songs, func(a, b models.PlatformSong) int {
		return b.AddedAt.Compare(a.AddedAt)
	})

	var cover string
	if len(songs) > 0 {
		cover = songs[0].AlbumCover
	}

	export := formatter.FromPlatformSongs(adapter.Name()+" Liked Songs", songs)
	files, err := formatter.WriteExport(export, opts.Format, opts.OutputDir, string(p.Type), cover)
	if err != nil {
		res.Err = err
		return res
	}

	res.Songs = len(songs)
	res.Files = files
	return res
}

func manifestFor(result *ExportResult, format string) *formatter.Manifest {
	m := &formatter.Manifest{
		Format:     format,
		ExportedAt: time.Now().UTC(),
		Successful: result.Successful,
		Failed:     result.Failed,
	}
	for _, r := range result.Results {
		entry := formatter.ManifestEntry{
			Platform: string(r.Platform),
			Status:   "success",
			Songs:    r.Songs,
			Files:    r.Files,
		}
		if r.Err != nil {
			entry.Status = "failed"
			entry.Error = r.Err.Error()
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}
