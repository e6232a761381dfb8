package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

// Setup creates config.toml from the embedded template when missing, then
// initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}
		r.writePlain("%s Created %s, fill in provider credentials before connecting platforms\n", ui.Success("✓"), r.configPath)
	}

	if r.store == nil {
		r.logger.Info("initializing database", "driver", r.config.Database.Driver, "path", r.config.Database.Path)
	}
	if err := r.open(); err != nil {
		return err
	}

	r.writePlain("%s Database ready\n", ui.Success("✓"))
	if types := r.registry.Types(); len(types) > 0 {
		r.writePlain("Configured providers: %s\n", joinTypes(types))
	} else {
		r.writePlain("%s No provider credentials configured yet\n", ui.Warning("⚠"))
	}
	return nil
}

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	migrator, closeDB, err := r.migrator()
	if err != nil {
		return err
	}
	defer closeDB()

	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		r.writePlain("%s Schema is up to date\n", ui.Success("✓"))
		return nil
	}
	r.writePlain("%s Applied migrations %v\n", ui.Success("✓"), applied)
	return nil
}

// MigrateDown rolls back the most recent migration.
func (r *Runner) MigrateDown(ctx context.Context, cmd *cli.Command) error {
	migrator, closeDB, err := r.migrator()
	if err != nil {
		return err
	}
	defer closeDB()

	m, err := migrator.Down(ctx)
	if err != nil {
		return err
	}
	r.writePlain("%s Rolled back %04d_%s\n", ui.Success("✓"), m.Version, m.Name)
	return nil
}

// MigrateStatus lists migrations and when each was applied.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	migrator, closeDB, err := r.migrator()
	if err != nil {
		return err
	}
	defer closeDB()

	statuses, err := migrator.Status(ctx)
	if err != nil {
		return err
	}
	if r.jsonOutput {
		return r.writeJSON(statuses)
	}
	for _, s := range statuses {
		if s.AppliedAt == nil {
			r.writePlain("%s %04d_%s pending\n", ui.Warning("○"), s.Version, s.Name)
			continue
		}
		r.writePlain("%s %04d_%s applied %s\n", ui.Success("●"), s.Version, s.Name, s.AppliedAt.Local().Format(time.DateTime))
	}
	return nil
}

// migrator opens the configured database without running migrations.
func (r *Runner) migrator() (*shared.Migrator, func(), error) {
	db, err := r.openDB()
	if err != nil {
		return nil, nil, err
	}
	m, err := shared.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return m, func() { db.Close() }, nil
}

func (r *Runner) openDB() (*shared.DB, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	return shared.OpenFromConfig(r.config.Database)
}

// UserCreate creates a local user with a bcrypt password hash.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	password := cmd.String("password")
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", shared.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     cmd.String("username"),
		Email:        cmd.String("email"),
		FullName:     cmd.String("full-name"),
		PasswordHash: string(hash),
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return err
	}

	for _, t := range r.registry.Types() {
		if err := r.store.CreatePlatform(ctx, &models.Platform{UserID: user.ID, Type: t}); err != nil {
			return fmt.Errorf("failed to create %s platform: %w", t, err)
		}
	}

	r.logger.Info("user created", "username", user.Username, "id", user.ID)
	if r.jsonOutput {
		return r.writeJSON(user)
	}
	r.writePlain("%s Created user %s (%s)\n", ui.Success("✓"), user.Username, user.ID)
	return nil
}

func joinTypes(types []models.PlatformType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.DisplayName()
	}
	return strings.Join(names, ", ")
}
