package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync adds songs liked on --source to each --target.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	source, err := models.ParsePlatformType(cmd.String("source"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidSyncRequest, err)
	}
	var targets []models.PlatformType
	for _, name := range cmd.StringSlice("target") {
		t, err := models.ParsePlatformType(name)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidSyncRequest, err)
		}
		targets = append(targets, t)
	}

	var opts []tasks.Option
	if cmd.Bool("live") {
		opts = append(opts, tasks.WithLiveTargets())
	}

	r.logger.Info("starting sync", "user", user.Username, "source", source, "targets", targets)
	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error) {
		return r.newEngine(opts...).Sync(ctx, user.ID, source, targets, progress)
	}

	out, err := r.runJob(ctx, cmd, fmt.Sprintf("Syncing %s liked songs", source.DisplayName()), run)
	r.writeMetrics()
	if err != nil {
		return err
	}
	result := out.(*tasks.SyncResult)

	if r.jsonOutput {
		return r.writeJSON(result)
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	r.writePlain("Source: %s (%d songs)\n", source.DisplayName(), result.SourceSongs)
	for _, t := range result.Targets {
		line := fmt.Sprintf("%s: %d added of %d missing", t.Platform.DisplayName(), t.SongsAdded, t.Missing)
		if t.Err != nil {
			r.writePlain("%s %s (stopped: %v)\n", ui.Error("✗"), line, t.Err)
			continue
		}
		r.writePlain("%s %s\n", ui.Success("✓"), line)

		for _, o := range t.Outcomes {
			if o.Status != tasks.StatusAdded {
				r.writePlain("   %s %s - %s (%s)\n", ui.Warning("•"), o.Song.Artist, o.Song.Title, o.Status)
			}
		}
	}
	r.writePlain("Total added: %d\n", result.SongsAdded())
	return nil
}

// Import records liked songs from every connected platform.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error) {
		return r.newEngine().ImportAll(ctx, user.ID, progress)
	}

	out, err := r.runJob(ctx, cmd, "Importing liked songs", run)
	r.writeMetrics()
	if err != nil {
		return err
	}
	result := out.(*tasks.ImportResult)

	if r.jsonOutput {
		return r.writeJSON(result)
	}

	r.writePlain("\n")
	r.writePlainHeader("Import Complete!")
	for _, p := range result.Platforms {
		if p.Err != nil {
			r.writePlain("%s %s: %v\n", ui.Error("✗"), p.Type.DisplayName(), p.Err)
			continue
		}
		r.writePlain("%s %s: %d new of %d liked\n", ui.Success("✓"), p.Type.DisplayName(), p.Imported, p.Total)
	}
	r.writePlain("Total imported: %d\n", result.Imported())
	return nil
}

// History lists the user's sync runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	history, err := r.newEngine().History(ctx, user.ID)
	if err != nil {
		return err
	}

	if r.jsonOutput {
		return r.writeJSON(history)
	}
	if len(history) == 0 {
		r.writePlain("No sync runs yet\n")
		return nil
	}

	names, err := r.platformNames(ctx, user.ID)
	if err != nil {
		return err
	}

	r.writePlainHeader("Sync History")
	for _, h := range history {
		mark := ui.Success("✓")
		if h.Status == models.SyncFailed {
			mark = ui.Error("✗")
		}
		targets := make([]string, len(h.TargetPlatforms))
		for i, id := range h.TargetPlatforms {
			targets[i] = names[id]
			if targets[i] == "" {
				targets[i] = id
			}
		}
		r.writePlain("%s %s  %-9s %3d added  → %v\n",
			mark, h.CompletedAt.Local().Format(time.DateTime), h.Status, h.SongsAdded, targets)
	}
	return nil
}

// runJob runs an engine operation, either under the bubbletea progress view
// (--tui) or printing progress lines as they arrive.
func (r *Runner) runJob(ctx context.Context, cmd *cli.Command, title string, job ui.Job) (any, error) {
	if cmd.Bool("tui") && !r.jsonOutput {
		restore, err := r.logToFile()
		if err != nil {
			return nil, err
		}
		defer restore()
		return ui.Run(ctx, title, job)
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progress)

	out, err := job(ctx, progress)
	close(progress)
	<-done
	return out, err
}

// printProgress writes each update's message until the channel closes.
// Updates are drained silently under --json.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if r.jsonOutput {
				continue
			}
			switch update.Phase {
			case tasks.AddSongs, tasks.ImportPlatform, tasks.ExportPlatform:
				r.writePlain("   %s\n", update.Message)
			case tasks.RecordHistory:
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return done
}

// logToFile redirects logging while the progress view owns the terminal.
func (r *Runner) logToFile() (func(), error) {
	path := filepath.Join(os.TempDir(), "musync-tui.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	r.logger.SetOutput(f)
	return func() {
		r.logger.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
