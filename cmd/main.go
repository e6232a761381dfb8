package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		os.Exit(exitCode(logger, err))
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "musync",
		Usage:    "Sync liked songs between Spotify, Apple Music & SoundCloud",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   r.configure,
		After:    r.close,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, userCommand, platformCommand, songsCommand, importCommand, syncCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// exitCode reports err with a hint for the failures users can fix.
func exitCode(logger *log.Logger, err error) int {
	switch {
	case errors.Is(err, shared.ErrAuthExpired):
		logger.Error(err)
		logger.Print(ui.Warning("Authorization expired. Reconnect with: musync platform connect <platform>"))
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrMissingConfig):
		logger.Error(err)
		logger.Print(ui.Warning("Check the credentials section of config.toml or the matching environment variables."))
	default:
		logger.Errorf("application error: %v", err)
	}
	return 1
}
