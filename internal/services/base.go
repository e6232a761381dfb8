package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"golang.org/x/oauth2"
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Platform   models.PlatformType
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Platform, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

// Unwrap classifies server-side failures as [shared.ErrProviderUnavailable].
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return shared.ErrProviderUnavailable
	}
	return nil
}

func isUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// base holds what every adapter shares: read-only OAuth configuration and the
// connect/disconnect/refresh plumbing.
type base struct {
	platformType models.PlatformType
	name         string
	oauth        *oauth2.Config
	authParams   []oauth2.AuthCodeOption
	store        models.PlatformUpdater
	client       *http.Client
	timeout      time.Duration
	logger       *log.Logger
}

func newBase(t models.PlatformType, oauth *oauth2.Config, opts Options, authParams ...oauth2.AuthCodeOption) base {
	opts = opts.withDefaults()
	return base{
		platformType: t,
		name:         t.DisplayName(),
		oauth:        oauth,
		authParams:   authParams,
		store:        opts.Store,
		client:       opts.HTTPClient,
		timeout:      opts.CallTimeout,
		logger:       shared.WithLogger(opts.Logger, "platform", string(t)),
	}
}

func (b *base) Type() models.PlatformType { return b.platformType }

func (b *base) Name() string { return b.name }

// AuthURL returns the OAuth2 authorization URL for user login.
func (b *base) AuthURL(state string) string {
	return b.oauth.AuthCodeURL(state, b.authParams...)
}

// HandleCallback exchanges code at the provider token endpoint.
func (b *base) HandleCallback(ctx context.Context, code string) (*models.Credentials, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrInvalidInput)
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	tok, err := b.oauth.Exchange(b.oauthContext(ctx), code)
	if err != nil {
		if timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: %s token exchange", shared.ErrProviderTimeout, b.name)
		}
		return nil, fmt.Errorf("%w: %s code exchange: %v", shared.ErrAuthFailed, b.name, err)
	}

	return &models.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// Connect upserts the (userID, type) platform row.
func (b *base) Connect(ctx context.Context, userID, accessToken, refreshToken string) (*models.Platform, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, fmt.Errorf("%w: access token and refresh token are required", shared.ErrInvalidInput)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: %s adapter has no store", shared.ErrInvalidConfig, b.name)
	}

	now := time.Now().UTC()
	existing, err := b.findPlatform(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.AccessToken = accessToken
		existing.RefreshToken = refreshToken
		existing.IsConnected = true
		existing.ConnectedAt = &now
		if err := b.store.UpdatePlatform(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update %s platform: %w", b.name, err)
		}
		b.logger.Info("platform reconnected", "user", userID)
		return existing, nil
	}

	p := &models.Platform{
		UserID:       userID,
		Type:         b.platformType,
		IsConnected:  true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ConnectedAt:  &now,
	}
	if err := b.store.CreatePlatform(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create %s platform: %w", b.name, err)
	}
	b.logger.Info("platform connected", "user", userID)
	return p, nil
}

// Disconnect flips the connected flag off and clears stored credentials.
func (b *base) Disconnect(ctx context.Context, userID string) error {
	if b.store == nil {
		return fmt.Errorf("%w: %s adapter has no store", shared.ErrInvalidConfig, b.name)
	}

	existing, err := b.findPlatform(ctx, userID)
	if err != nil || existing == nil {
		return err
	}

	existing.IsConnected = false
	existing.AccessToken = ""
	existing.RefreshToken = ""
	if err := b.store.UpdatePlatform(ctx, existing); err != nil {
		return fmt.Errorf("failed to update %s platform: %w", b.name, err)
	}
	b.logger.Info("platform disconnected", "user", userID)
	return nil
}

func (b *base) findPlatform(ctx context.Context, userID string) (*models.Platform, error) {
	platforms, err := b.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}
	for _, p := range platforms {
		if p.Type == b.platformType {
			return p, nil
		}
	}
	return nil, nil
}

// call runs fn with the platform's access token under the per-call timeout.
// On a 401 it refreshes once, persists the new pair and retries once; a
// second 401 is reported as [shared.ErrAuthExpired].
func (b *base) call(ctx context.Context, p *models.Platform, fn func(ctx context.Context, token string) error) error {
	if p == nil || p.AccessToken == "" {
		return fmt.Errorf("%w: no %s access token", shared.ErrAuthExpired, b.name)
	}

	err := b.attempt(ctx, p.AccessToken, fn)
	if !isUnauthorized(err) {
		return err
	}

	b.logger.Debug("access token rejected, refreshing", "platform_id", p.ID)
	if err := b.refresh(ctx, p); err != nil {
		return err
	}

	err = b.attempt(ctx, p.AccessToken, fn)
	if isUnauthorized(err) {
		return fmt.Errorf("%w: %s rejected refreshed token: %v", shared.ErrAuthExpired, b.name, err)
	}
	return err
}

func (b *base) attempt(ctx context.Context, token string, fn func(ctx context.Context, token string) error) error {
	callCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	err := fn(callCtx, token)
	if err == nil || isUnauthorized(err) {
		return err
	}
	return b.classify(callCtx, err)
}

// refresh exchanges the platform's refresh token and writes the new pair onto p.
func (b *base) refresh(ctx context.Context, p *models.Platform) error {
	if p.RefreshToken == "" {
		return fmt.Errorf("%w: %s has no refresh token", shared.ErrAuthExpired, b.name)
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	src := b.oauth.TokenSource(b.oauthContext(ctx), &oauth2.Token{RefreshToken: p.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if timedOut(ctx, err) {
			return fmt.Errorf("%w: %s token refresh", shared.ErrProviderTimeout, b.name)
		}
		return fmt.Errorf("%w: %s token refresh failed: %v", shared.ErrAuthExpired, b.name, err)
	}

	p.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		p.RefreshToken = tok.RefreshToken
	}

	if b.store != nil && p.ID != "" {
		if err := b.store.UpdatePlatform(context.WithoutCancel(ctx), p); err != nil {
			b.logger.Warn("failed to persist refreshed token", "platform_id", p.ID, "err", err)
		}
	}
	return nil
}

// classify maps transport failures onto the provider error taxonomy.
func (b *base) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, shared.ErrProviderUnavailable), errors.Is(err, shared.ErrAuthExpired):
		return err
	case timedOut(ctx, err):
		return fmt.Errorf("%w: %s: %v", shared.ErrProviderTimeout, b.name, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", shared.ErrProviderUnavailable, b.name, err)
	}
	return err
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// oauthContext makes golang.org/x/oauth2 use the adapter's HTTP client.
func (b *base) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

func timedOut(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
