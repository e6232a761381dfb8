package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/metrics"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/repositories"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and adapters are opened lazily by [Runner.open] so commands like
// setup can run before a database exists.
type Runner struct {
	config      *shared.Config
	configPath  string
	logger      *log.Logger
	output      io.Writer
	httpClient  *http.Client
	db          *shared.DB
	store       models.Store
	registry    *services.Registry
	metrics     *metrics.Metrics
	openBrowser func(string) error
	jsonOutput  bool
	loaded      bool
}

// RunnerOpts contains configuration options for creating a Runner. Config,
// Store and Registry are normally left nil and resolved from the config file.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Store      models.Store
	Registry   *services.Registry
	Metrics    *metrics.Metrics
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		logger:      opts.Logger,
		output:      opts.Output,
		httpClient:  opts.HTTPClient,
		store:       opts.Store,
		registry:    opts.Registry,
		metrics:     opts.Metrics,
		openBrowser: shared.OpenBrowser,
		loaded:      opts.Config != nil,
	}
}

// configure runs before every command: it loads .env, the TOML config and
// the environment overlay, then applies the global flags.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	r.jsonOutput = cmd.Bool("json")

	if !r.loaded {
		if err := shared.LoadDotEnv(); err != nil {
			r.logger.Warn("failed to load .env", "err", err)
		}

		config := shared.DefaultConfig()
		if _, err := os.Stat(r.configPath); err == nil {
			if config, err = shared.LoadConfig(r.configPath); err != nil {
				return ctx, err
			}
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}

		if err := config.ApplyEnv(ctx, nil); err != nil {
			return ctx, err
		}
		r.config = config
		r.loaded = true
	}

	if err := shared.SetLogLevel(r.logger, r.config.LogLevel); err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}
	return ctx, nil
}

// open connects storage, runs pending migrations and builds the adapter
// registry. It is a no-op when a store was injected.
func (r *Runner) open() error {
	if r.store != nil {
		if r.registry == nil {
			r.registry = r.newRegistry()
		}
		return nil
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	db, err := shared.OpenFromConfig(r.config.Database)
	if err != nil {
		return err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.store = repositories.NewStore(db)
	r.registry = r.newRegistry()
	r.logger.Debug("storage opened", "driver", db.Driver, "providers", r.registry.Types())
	return nil
}

func (r *Runner) newRegistry() *services.Registry {
	client := r.httpClient
	if client == nil {
		client = services.NewHTTPClient(nil, r.config.Sync.RequestsPerSecond, r.config.Sync.Burst)
	}
	return services.NewRegistryFromConfig(r.config.Credentials, services.Options{
		Store:       r.store,
		HTTPClient:  client,
		CallTimeout: r.config.Sync.CallTimeout.Std(),
		Logger:      r.logger,
	})
}

// close releases storage opened by [Runner.open].
func (r *Runner) close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// newEngine builds an engine over the runner's storage and adapters.
func (r *Runner) newEngine(opts ...tasks.Option) *tasks.Engine {
	opts = append([]tasks.Option{tasks.WithLogger(r.logger), tasks.WithMetrics(r.metrics)}, opts...)
	return tasks.NewEngine(r.store, r.registry, opts...)
}

// currentUser resolves --user, falling back to user.default in the config.
func (r *Runner) currentUser(ctx context.Context, cmd *cli.Command) (*models.User, error) {
	username := cmd.String("user")
	if username == "" {
		username = r.config.User.Default
	}
	if username == "" {
		return nil, fmt.Errorf("%w: --user is required (or set user.default in config)", shared.ErrMissingArgument)
	}

	user, err := r.store.GetUserByUsername(ctx, username)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %q does not exist, create it with 'musync user create'", shared.ErrNotFound, username)
	}
	return user, err
}

// adapterFor parses a platform argument and returns its adapter.
func (r *Runner) adapterFor(name string) (services.Adapter, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: platform", shared.ErrMissingArgument)
	}
	t, err := models.ParsePlatformType(name)
	if err != nil {
		return nil, err
	}
	adapter, err := r.registry.Get(t)
	if err != nil {
		return nil, fmt.Errorf("%w (are its credentials configured?)", err)
	}
	return adapter, nil
}

// writeMetrics writes the metrics textfile when one is configured.
func (r *Runner) writeMetrics() {
	if err := r.metrics.WriteTextfile(r.config.Metrics.Textfile); err != nil {
		r.logger.Warn("failed to write metrics textfile", "err", err)
	}
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
