// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/musync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// globalFlags are accepted by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Username to act as (default: user.default from config)",
			Sources: cli.EnvVars("MUSYNC_USER"),
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON instead of text",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// migrateCommand applies or rolls back schema migrations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Database schema migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: r.MigrateUp,
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: r.MigrateDown,
			},
			{
				Name:   "status",
				Usage:  "List migrations and when they were applied",
				Action: r.MigrateStatus,
			},
		},
	}
}

// userCommand manages local users.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage local users",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "Unique username", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password (hashed with bcrypt)", Required: true, Sources: cli.EnvVars("MUSYNC_PASSWORD")},
					&cli.StringFlag{Name: "full-name", Usage: "Display name"},
				},
				Action: r.UserCreate,
			},
		},
	}
}

// platformCommand manages provider connections.
func platformCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "platform",
		Aliases: []string{"platforms"},
		Usage:   "Manage Spotify, Apple Music and SoundCloud connections",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the user's platform connections",
				Action: r.PlatformList,
			},
			{
				Name:  "connect",
				Usage: "Authorize a platform in the browser and store its tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform", UsageText: "spotify, apple_music or soundcloud"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "access-token", Usage: "Store this access token instead of running the OAuth flow"},
					&cli.StringFlag{Name: "refresh-token", Usage: "Refresh token to store with --access-token"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser callback", Value: authTimeout},
				},
				Action: r.PlatformConnect,
			},
			{
				Name:  "disconnect",
				Usage: "Disconnect a platform and clear its stored tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "platform"},
				},
				Action: r.PlatformDisconnect,
			},
		},
	}
}

// songsCommand queries the local library and live provider libraries.
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Inspect liked songs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded songs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Only songs recorded on this platform"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: text, csv, markdown, json", Value: formatter.FormatText},
				},
				Action: r.SongsList,
			},
			{
				Name:   "missing",
				Usage:  "Show recorded songs each connected platform is missing",
				Action: r.SongsMissing,
			},
			{
				Name:  "live",
				Usage: "Fetch liked songs directly from connected platforms",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Only this platform"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: text, csv, markdown, json", Value: formatter.FormatText},
				},
				Action: r.SongsLive,
			},
			{
				Name:  "export",
				Usage: "Export each platform's liked songs to files",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: text, csv, markdown, json", Value: formatter.FormatJSON},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (default: musync_export_{timestamp})"},
					&cli.IntFlag{Name: "workers", Usage: "Platforms fetched concurrently", Value: 3},
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Only this platform"},
				},
				Action: r.SongsExport,
			},
		},
	}
}

// importCommand records every connected platform's liked songs locally.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Record liked songs from all connected platforms",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tui", Usage: "Show an interactive progress view"},
		},
		Action: r.Import,
	}
}

// syncCommand copies liked songs from one platform to others.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Add songs liked on the source platform to the target platforms",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source platform", Required: true},
			&cli.StringSliceFlag{Name: "target", Aliases: []string{"t"}, Usage: "Target platform (repeatable, in order)", Required: true},
			&cli.BoolFlag{Name: "live", Usage: "Also compare against each target's live library"},
			&cli.BoolFlag{Name: "tui", Usage: "Show an interactive progress view"},
		},
		Action: r.Sync,
	}
}

// historyCommand lists past sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "Show sync history, most recent first",
		Action: r.History,
	}
}
