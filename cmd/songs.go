package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/musync/internal/formatter"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
)

// optionalPlatform parses --platform, returning "" when it is unset.
func optionalPlatform(cmd *cli.Command) (models.PlatformType, error) {
	name := cmd.String("platform")
	if name == "" {
		return "", nil
	}
	return models.ParsePlatformType(name)
}

// platformNames maps the user's platform IDs to display names.
func (r *Runner) platformNames(ctx context.Context, userID string) (map[string]string, error) {
	platforms, err := r.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(platforms))
	for _, p := range platforms {
		names[p.ID] = p.Type.DisplayName()
	}
	return names, nil
}

// render writes export in the --format (or --json) chosen by the user.
func (r *Runner) render(cmd *cli.Command, export *formatter.Export) error {
	format := cmd.String("format")
	if r.jsonOutput {
		format = formatter.FormatJSON
	}
	data, err := formatter.Render(export, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// SongsList lists recorded songs, optionally only those on one platform.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}
	platform, err := optionalPlatform(cmd)
	if err != nil {
		return err
	}

	songs, err := r.newEngine().ListSongs(ctx, user.ID, platform)
	if err != nil {
		return err
	}
	names, err := r.platformNames(ctx, user.ID)
	if err != nil {
		return err
	}

	title := "Liked Songs"
	if platform != "" {
		title = fmt.Sprintf("Liked Songs on %s", platform.DisplayName())
	}
	return r.render(cmd, formatter.FromSongs(title, songs, names))
}

// SongsMissing shows which recorded songs each connected platform lacks.
func (r *Runner) SongsMissing(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	missing, err := r.newEngine().MissingSongs(ctx, user.ID)
	if err != nil {
		return err
	}

	if r.jsonOutput {
		return r.writeJSON(missing)
	}

	for _, m := range missing {
		r.writePlainHeader(fmt.Sprintf("Missing on %s (%d)", m.PlatformType.DisplayName(), len(m.Songs)))
		if len(m.Songs) == 0 {
			r.writePlain("%s Nothing missing\n", ui.Success("✓"))
		}
		for i, s := range m.Songs {
			r.writePlain("%d. %s - %s\n", i+1, s.Artist, s.Title)
		}
		r.writePlain("\n")
	}
	return nil
}

// SongsLive fetches liked songs straight from the providers.
func (r *Runner) SongsLive(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}
	platform, err := optionalPlatform(cmd)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 10)
	done := r.printProgress(progress)
	songs, err := r.newEngine().LibrarySongs(ctx, user.ID, platform, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	return r.render(cmd, formatter.FromPlatformSongs("Live Liked Songs", songs))
}

// SongsExport writes one file per connected platform plus a manifest.
func (r *Runner) SongsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}
	platform, err := optionalPlatform(cmd)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		Platform:   platform,
	}

	progress := make(chan tasks.ProgressUpdate, 10)
	done := r.printProgress(progress)
	result, err := r.newEngine().ExportLibrary(ctx, user.ID, opts, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if r.jsonOutput {
		return r.writeJSON(result)
	}

	r.writePlainln("Export Complete")
	r.writePlain("Output directory: %s\n", result.OutputDirectory)
	r.writePlain("Successful: %d\n", result.Successful)
	if result.Failed > 0 {
		r.writePlain("%s\n", ui.Warning(fmt.Sprintf("Failed: %d", result.Failed)))
	}
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}
