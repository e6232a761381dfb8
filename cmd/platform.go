package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/server"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

type platformStatus struct {
	Type        models.PlatformType `json:"type"`
	Name        string              `json:"name"`
	Configured  bool                `json:"configured"`
	Connected   bool                `json:"connected"`
	ConnectedAt *time.Time          `json:"connected_at,omitempty"`
	PlatformID  string              `json:"platform_id,omitempty"`
}

// PlatformList shows every provider with its configuration and connection state.
func (r *Runner) PlatformList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	platforms, err := r.store.GetPlatformsByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	byType := make(map[models.PlatformType]*models.Platform, len(platforms))
	for _, p := range platforms {
		byType[p.Type] = p
	}

	statuses := make([]platformStatus, 0, len(models.AllPlatformTypes()))
	for _, t := range models.AllPlatformTypes() {
		s := platformStatus{Type: t, Name: t.DisplayName(), Configured: r.registry.Has(t)}
		if p, ok := byType[t]; ok {
			s.Connected, s.ConnectedAt, s.PlatformID = p.IsConnected, p.ConnectedAt, p.ID
		}
		statuses = append(statuses, s)
	}

	if r.jsonOutput {
		return r.writeJSON(statuses)
	}

	r.writePlainHeader(fmt.Sprintf("Platforms for %s", user.Username))
	for _, s := range statuses {
		switch {
		case s.Connected:
			r.writePlain("%s %-12s connected %s\n", ui.Success("●"), s.Name, s.ConnectedAt.Local().Format(time.DateTime))
		case !s.Configured:
			r.writePlain("%s %-12s %s\n", ui.Muted("○"), s.Name, ui.Muted("no credentials configured"))
		default:
			r.writePlain("%s %-12s not connected\n", ui.Warning("○"), s.Name)
		}
	}
	return nil
}

// PlatformConnect links a provider account. Without --access-token it runs
// the OAuth flow through a local callback server.
func (r *Runner) PlatformConnect(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}
	adapter, err := r.adapterFor(cmd.StringArg("platform"))
	if err != nil {
		return err
	}

	access, refresh := cmd.String("access-token"), cmd.String("refresh-token")
	if access == "" {
		creds, err := r.authorize(ctx, adapter, cmd.Duration("timeout"))
		if err != nil {
			return err
		}
		access, refresh = creds.AccessToken, creds.RefreshToken
	}

	p, err := adapter.Connect(ctx, user.ID, access, refresh)
	if err != nil {
		return fmt.Errorf("failed to connect %s: %w", adapter.Name(), err)
	}

	r.logger.Info("platform connected", "user", user.Username, "platform", p.Type, "id", p.ID)
	if r.jsonOutput {
		return r.writeJSON(p)
	}
	r.writePlain("%s %s connected\n", ui.Success("✓"), adapter.Name())
	r.writePlain("Next: musync import, then musync sync --source %s --target <platform>\n", p.Type)
	return nil
}

// authorize runs the browser OAuth flow for adapter.
func (r *Runner) authorize(ctx context.Context, adapter services.Adapter, timeout time.Duration) (*models.Credentials, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	if timeout <= 0 {
		timeout = authTimeout
	}

	handler := server.NewCallbackHandler(callbackPath(r.config, adapter.Type()), adapter.Name(), state, adapter.HandleCallback)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := server.NewCallbackServer(addr, handler, r.logger, server.Route{Path: "/metrics", Handler: r.metrics.Handler()})

	return srv.Run(ctx, timeout, func(string) {
		authURL := adapter.AuthURL(state)
		r.writePlain("→ Opening browser for %s authorization...\n", adapter.Name())
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "err", err)
			r.writePlain("%s Could not open browser automatically.\n", ui.Warning("⚠"))
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
		r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	})
}

// callbackPath is the path of the provider's configured redirect URI.
func callbackPath(c *shared.Config, t models.PlatformType) string {
	var redirect string
	switch t {
	case models.Spotify:
		redirect = c.Credentials.Spotify.RedirectURI
	case models.AppleMusic:
		redirect = c.Credentials.AppleMusic.RedirectURI
	case models.SoundCloud:
		redirect = c.Credentials.SoundCloud.RedirectURI
	}
	if u, err := url.Parse(redirect); err == nil && u.Path != "" && u.Path != "/" {
		return u.Path
	}
	return "/callback/" + string(t)
}

// PlatformDisconnect marks a provider disconnected and clears its tokens.
func (r *Runner) PlatformDisconnect(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	user, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}
	adapter, err := r.adapterFor(cmd.StringArg("platform"))
	if err != nil {
		return err
	}

	if err := adapter.Disconnect(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", adapter.Name(), err)
	}

	r.logger.Info("platform disconnected", "user", user.Username, "platform", adapter.Type())
	r.writePlain("%s %s disconnected\n", ui.Success("✓"), adapter.Name())
	return nil
}
