package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "cratedig.db" {
			t.Errorf("expected database path cratedig.db, got %s", config.Database.Path)
		}

		if config.Sync.MaxAttempts != 5 {
			t.Errorf("expected 5 max attempts, got %d", config.Sync.MaxAttempts)
		}

		if config.Sync.RequestsPerSec != 5.0 {
			t.Errorf("expected 5.0 requests per second, got %v", config.Sync.RequestsPerSec)
		}

		if config.Credentials.Spotify.RedirectURI != "http://localhost:8888/callback" {
			t.Errorf("unexpected redirect URI %s", config.Credentials.Spotify.RedirectURI)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("expected error creating config over an existing file")
		}
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		t.Setenv("SPOTIFY_CLIENT_ID", "env_client_id")
		t.Setenv("SPOTIFY_CLIENT_SECRET", "env_secret")
		t.Setenv("SPOTIFY_REFRESH_TOKEN", "env_refresh")

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_client_id" {
			t.Errorf("expected env client_id override, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected env client_secret override, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Credentials.Spotify.RefreshToken != "env_refresh" {
			t.Errorf("expected env refresh_token override, got %s", config.Credentials.Spotify.RefreshToken)
		}
	})

	t.Run("SaveConfig Roundtrip", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		config := DefaultConfig()
		config.Database.Path = "custom.db"
		config.Sync.MaxAttempts = 3

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		if loaded.Database.Path != "custom.db" {
			t.Errorf("expected custom.db, got %s", loaded.Database.Path)
		}
		if loaded.Sync.MaxAttempts != 3 {
			t.Errorf("expected 3 max attempts, got %d", loaded.Sync.MaxAttempts)
		}
	})

	t.Run("Credentials Map", func(t *testing.T) {
		creds := SpotifyConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			RefreshToken: "refresh",
		}

		m := creds.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["refresh_token"] != "refresh" {
			t.Errorf("unexpected credentials map: %v", m)
		}
	})
}
