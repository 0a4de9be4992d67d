package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != ":memory:" {
			t.Errorf("expected database path :memory:, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Playlists.OverflowSize != 5 {
			t.Errorf("expected overflow size 5, got %d", config.Playlists.OverflowSize)
		}

		if config.Playlists.CacheTTL.Duration != 10*time.Second {
			t.Errorf("expected cache ttl 10s, got %v", config.Playlists.CacheTTL)
		}

		if config.Sync.PollInterval.Duration != 5*time.Second {
			t.Errorf("expected poll interval 5s, got %v", config.Sync.PollInterval)
		}

		if config.Operations.CriticalTimeout.Duration != 5*time.Second {
			t.Errorf("expected critical timeout 5s, got %v", config.Operations.CriticalTimeout)
		}

		if config.Operations.SearchBackoff.Duration != 500*time.Millisecond {
			t.Errorf("expected search backoff 500ms, got %v", config.Operations.SearchBackoff)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Playlists.Active != DefaultConfig().Playlists.Active {
			t.Errorf("created config active playlist doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
refresh_token = "refresh"

[playlists]
active = "Party Queue"
overflow_size = 7

[sync]
poll_interval = "2s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Playlists.Active != "Party Queue" {
			t.Errorf("expected active playlist Party Queue, got %s", config.Playlists.Active)
		}
		if config.Playlists.OverflowSize != 7 {
			t.Errorf("expected overflow size 7, got %d", config.Playlists.OverflowSize)
		}
		if config.Sync.PollInterval.Duration != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %v", config.Sync.PollInterval)
		}
		if config.Sync.Debounce.Duration != time.Second {
			t.Errorf("expected default debounce 1s, got %v", config.Sync.Debounce)
		}
		if config.Playlists.Overflow != DefaultConfig().Playlists.Overflow {
			t.Errorf("expected default overflow name, got %s", config.Playlists.Overflow)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\npoll_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trips tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry})

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected a token")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("expected saved token pair, got %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
		if loaded.Sync.Debounce.Duration != time.Second {
			t.Errorf("expected debounce to survive round trip, got %v", loaded.Sync.Debounce)
		}
	})
}

func TestSpotifyConfig(t *testing.T) {
	t.Run("Token nil without refresh token", func(t *testing.T) {
		if tok := (SpotifyConfig{AccessToken: "a"}).Token(); tok != nil {
			t.Errorf("expected nil token, got %+v", tok)
		}
	})

	t.Run("Update keeps refresh token", func(t *testing.T) {
		cfg := SpotifyConfig{RefreshToken: "old"}
		cfg.Update(&oauth2.Token{AccessToken: "new-access"})
		if cfg.RefreshToken != "old" {
			t.Errorf("expected refresh token old, got %s", cfg.RefreshToken)
		}
		if cfg.AccessToken != "new-access" {
			t.Errorf("expected access token new-access, got %s", cfg.AccessToken)
		}
	})

	t.Run("Map", func(t *testing.T) {
		m := (SpotifyConfig{ClientID: "id", ClientSecret: "secret"}).Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" {
			t.Errorf("unexpected map %v", m)
		}
	})
}
