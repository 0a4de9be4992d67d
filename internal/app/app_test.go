package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	tu "github.com/desertthunder/crowdq/internal/testing"
	"golang.org/x/oauth2"
)

type stubRefresher struct{ calls int }

func (s *stubRefresher) Refresh(context.Context) error {
	s.calls++
	return nil
}

func TestNew(t *testing.T) {
	t.Run("requires a Spotify token", func(t *testing.T) {
		_, err := New(Opts{Config: shared.DefaultConfig(), Logger: shared.DiscardLogger()})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("wires the Spotify client behind the token guard", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Credentials.Spotify.RefreshToken = "refresh"

		a, err := New(Opts{Config: cfg, Logger: shared.DiscardLogger()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer a.Close()

		if a.Spotify == nil || a.Guard == nil {
			t.Fatal("expected Spotify client and token guard")
		}
		if tok := a.Spotify.Token(); tok == nil || tok.RefreshToken != "refresh" {
			t.Errorf("expected configured token, got %+v", tok)
		}
	})

	t.Run("accepts a replacement remote", func(t *testing.T) {
		a, err := New(Opts{Remote: tu.NewFakeRemote(), Logger: shared.DiscardLogger()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer a.Close()

		if a.Spotify != nil || a.Guard != nil {
			t.Error("expected no Spotify client and no guard")
		}
		if a.Remote == nil || a.Coordinator == nil || a.Catalog == nil {
			t.Error("expected components to be wired")
		}
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	remote := tu.NewFakeRemote()
	tracks := remote.AddTracks(10)
	var refs []string
	for _, tr := range tracks[1:] {
		refs = append(refs, tr.ID)
	}
	remote.SetLibrary(refs...)
	remote.AddDevice(models.Device{ID: "speaker", Name: "speaker", IsActive: true})

	cfg := shared.DefaultConfig()
	cfg.Sync.ResumeOnStart = false
	refresher := &stubRefresher{}
	a, err := New(Opts{Config: cfg, Remote: remote, Refresher: refresher, Logger: shared.DiscardLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	overflow, ok := remote.PlaylistByName(cfg.Playlists.Overflow)
	if !ok {
		t.Fatal("expected overflow playlist to be created")
	}
	if got := len(remote.PlaylistRefs(overflow.ID)); got != cfg.Playlists.OverflowSize {
		t.Errorf("expected %d overflow tracks, got %d", cfg.Playlists.OverflowSize, got)
	}
	if _, ok := remote.PlaylistByName(cfg.Playlists.Active); !ok {
		t.Error("expected active playlist to be created")
	}
	if got := a.Queue.Len(); got != cfg.Playlists.OverflowSize {
		t.Errorf("expected queue seeded with %d songs, got %d", cfg.Playlists.OverflowSize, got)
	}

	res := a.Coordinator.AddSong(ctx, models.AddSongRequest{Ref: tracks[0].ID, UserID: "alice"})
	if !res.Success {
		t.Fatalf("expected add to succeed, got %+v", res)
	}
	if res.ArchiveName != cfg.Playlists.Archive {
		t.Errorf("expected archive %q, got %q", cfg.Playlists.Archive, res.ArchiveName)
	}
	if _, ok := a.Catalog.Lookup(tracks[0].ID); !ok {
		t.Error("expected the added track in the catalog")
	}

	if err := a.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.RefreshToken = "refresh"
	if err := shared.SaveConfig(path, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	a, err := New(Opts{Config: cfg, ConfigPath: path, Logger: shared.DiscardLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	a.saveToken(&oauth2.Token{AccessToken: "fresh"})

	loaded, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if loaded.Credentials.Spotify.AccessToken != "fresh" {
		t.Errorf("expected fresh access token, got %q", loaded.Credentials.Spotify.AccessToken)
	}
	if loaded.Credentials.Spotify.RefreshToken != "refresh" {
		t.Errorf("expected refresh token kept, got %q", loaded.Credentials.Spotify.RefreshToken)
	}
}
