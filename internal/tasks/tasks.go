package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/metrics"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
)

// Engine runs sync, import and library operations against a [models.Store]
// and the adapters in a [services.Registry].
type Engine struct {
	store       models.Store
	registry    *services.Registry
	logger      *log.Logger
	metrics     *metrics.Metrics
	liveTargets bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records run and song outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLiveTargets makes Sync union each target's live liked songs with its
// locally recorded songs before computing what is missing.
func WithLiveTargets() Option {
	return func(e *Engine) { e.liveTargets = true }
}

// NewEngine creates an Engine.
func NewEngine(store models.Store, registry *services.Registry, opts ...Option) *Engine {
	e := &Engine{store: store, registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// connectedPlatforms returns the user's connected platforms that have a
// registered adapter, after checking the user exists.
func (e *Engine) connectedPlatforms(ctx context.Context, userID string) ([]*models.Platform, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	platforms, err := e.store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}

	connected := make([]*models.Platform, 0, len(platforms))
	for _, p := range platforms {
		if p.IsConnected && e.registry.Has(p.Type) {
			connected = append(connected, p)
		}
	}
	return connected, nil
}
