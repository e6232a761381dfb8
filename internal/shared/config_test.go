package shared

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./musync.db" {
			t.Errorf("expected database path ./musync.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected driver sqlite3, got %s", config.Database.Driver)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Sync.CallTimeout.Std() != 15*time.Second {
			t.Errorf("expected call timeout 15s, got %s", config.Sync.CallTimeout.Std())
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `log_level = "debug"

[database]
driver = "pgx"
dsn = "postgres://musync@localhost/musync"

[sync]
call_timeout = "2s"

[credentials.soundcloud]
client_id = "sc_id"
client_secret = "sc_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected driver pgx, got %s", config.Database.Driver)
		}

		if config.Sync.CallTimeout.Std() != 2*time.Second {
			t.Errorf("expected call timeout 2s, got %s", config.Sync.CallTimeout.Std())
		}

		if config.Server.Port != 3000 {
			t.Errorf("unset values should keep defaults, got port %d", config.Server.Port)
		}

		if config.Credentials.SoundCloud.ClientID != "sc_id" {
			t.Errorf("expected soundcloud client_id sc_id, got %s", config.Credentials.SoundCloud.ClientID)
		}
	})

	t.Run("LoadConfig invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\ncall_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		config := DefaultConfig()
		lookuper := envconfig.MapLookuper(map[string]string{
			"SPOTIFY_CLIENT_ID":           "env_spotify",
			"APPLE_MUSIC_DEVELOPER_TOKEN": "dev_token",
			"MUSYNC_DATABASE_PATH":        "/tmp/env.db",
			"MUSYNC_SYNC_CALL_TIMEOUT":    "30s",
			"MUSYNC_LOG_LEVEL":            "warn",
		})

		if err := config.ApplyEnv(context.Background(), lookuper); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_spotify" {
			t.Errorf("expected env to override spotify client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("unset env vars should keep file values")
		}
		if config.Credentials.AppleMusic.DeveloperToken != "dev_token" {
			t.Errorf("expected developer token from env, got %s", config.Credentials.AppleMusic.DeveloperToken)
		}
		if config.Database.Path != "/tmp/env.db" {
			t.Errorf("expected database path from env, got %s", config.Database.Path)
		}
		if config.Sync.CallTimeout.Std() != 30*time.Second {
			t.Errorf("expected call timeout 30s, got %s", config.Sync.CallTimeout.Std())
		}
		if config.LogLevel != "warn" {
			t.Errorf("expected log level warn, got %s", config.LogLevel)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(c *Config)
		}{
			{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
			{name: "pgx without dsn", mutate: func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.DSN = "" }},
			{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }},
			{name: "zero timeout", mutate: func(c *Config) { c.Sync.CallTimeout = 0 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadDotEnv missing file", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("missing .env should be ignored, got %v", err)
		}
	})
}
