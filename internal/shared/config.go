package shared

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and
// overlaid with environment variables.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" env:",prefix="`
	Database    DatabaseConfig    `toml:"database" env:",prefix=MUSYNC_DATABASE_"`
	Server      ServerConfig      `toml:"server" env:",prefix=MUSYNC_SERVER_"`
	Sync        SyncConfig        `toml:"sync" env:",prefix=MUSYNC_SYNC_"`
	Metrics     MetricsConfig     `toml:"metrics" env:",prefix=MUSYNC_METRICS_"`
	User        UserConfig        `toml:"user" env:",prefix=MUSYNC_USER_"`
	LogLevel    string            `toml:"log_level" env:"MUSYNC_LOG_LEVEL, overwrite"`
}

// CredentialsConfig contains provider application credentials.
type CredentialsConfig struct {
	Spotify    SpotifyConfig    `toml:"spotify" env:",prefix=SPOTIFY_"`
	AppleMusic AppleMusicConfig `toml:"apple_music" env:",prefix=APPLE_MUSIC_"`
	SoundCloud SoundCloudConfig `toml:"soundcloud" env:",prefix=SOUNDCLOUD_"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID, overwrite"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET, overwrite"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI, overwrite"`
}

// AppleMusicConfig contains Apple Music API credentials.
//
// DeveloperToken is used verbatim when set. Otherwise a token is signed from
// TeamID, KeyID and the .p8 key at PrivateKeyPath.
type AppleMusicConfig struct {
	ClientID       string `toml:"client_id" env:"CLIENT_ID, overwrite"`
	ClientSecret   string `toml:"client_secret" env:"CLIENT_SECRET, overwrite"`
	RedirectURI    string `toml:"redirect_uri" env:"REDIRECT_URI, overwrite"`
	DeveloperToken string `toml:"developer_token" env:"DEVELOPER_TOKEN, overwrite"`
	TeamID         string `toml:"team_id" env:"TEAM_ID, overwrite"`
	KeyID          string `toml:"key_id" env:"KEY_ID, overwrite"`
	PrivateKeyPath string `toml:"private_key_path" env:"PRIVATE_KEY_PATH, overwrite"`
	Storefront     string `toml:"storefront" env:"STOREFRONT, overwrite"`
}

// SoundCloudConfig contains SoundCloud API credentials.
type SoundCloudConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID, overwrite"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET, overwrite"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI, overwrite"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" (Path is used) or "pgx" (DSN is used).
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"DRIVER, overwrite"`
	Path         string `toml:"path" env:"PATH, overwrite"`
	DSN          string `toml:"dsn" env:"DSN, overwrite"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS, overwrite"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS, overwrite"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host" env:"HOST, overwrite"`
	Port int    `toml:"port" env:"PORT, overwrite"`
}

// SyncConfig tunes provider calls made by the engines.
type SyncConfig struct {
	CallTimeout       Duration `toml:"call_timeout" env:"CALL_TIMEOUT, overwrite"`
	RequestsPerSecond float64  `toml:"requests_per_second" env:"REQUESTS_PER_SECOND, overwrite"`
	Burst             int      `toml:"burst" env:"BURST, overwrite"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `toml:"textfile" env:"TEXTFILE, overwrite"`
}

// UserConfig names the user commands act on when --user is omitted.
type UserConfig struct {
	Default string `toml:"default" env:"DEFAULT, overwrite"`
}

// Duration is a [time.Duration] that decodes from strings like "15s" in both
// TOML and environment variables.
type Duration time.Duration

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config. A nil lookuper reads
// the process environment.
func (c *Config) ApplyEnv(ctx context.Context, l envconfig.Lookuper) error {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: c, Lookuper: l}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite3", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for pgx", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Sync.CallTimeout.Std() <= 0 {
		return fmt.Errorf("%w: sync.call_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
