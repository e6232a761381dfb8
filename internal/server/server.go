// package server runs the local HTTP listener that receives provider OAuth callbacks
package server

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
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the paths it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers behind a middleware stack.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// CallbackServer listens for a single OAuth callback and shuts down once it
// has been handled.
type CallbackServer struct {
	addr     string
	callback *CallbackHandler
	router   Router
	logger   *log.Logger
}

var _ Router = (*BasicRouter)(nil)

// NewCallbackServer creates a server on addr that routes callbacks to h.
// Only GET and POST (form_post) reach the callback. Extra handlers (for
// example a metrics endpoint) share the router.
func NewCallbackServer(addr string, h *CallbackHandler, logger *log.Logger, extra ...Handler) *CallbackServer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var router Router = NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	for _, path := range h.Routes() {
		router.Handle(http.MethodGet, path, h)
		router.Handle(http.MethodPost, path, h)
	}
	for _, e := range extra {
		router.Handler(e)
	}

	return &CallbackServer{addr: addr, callback: h, router: router, logger: logger}
}

// Run starts listening, calls ready with the bound address, and waits for the
// callback result, ctx cancellation or timeout. The listener is always shut
// down before Run returns.
func (s *CallbackServer) Run(ctx context.Context, timeout time.Duration, ready func(addr string)) (*models.Credentials, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer s.shutdown(srv)

	s.logger.Debug("callback server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.callback.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Credentials, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrProviderTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("error shutting down callback server", "err", err)
	}
}
