package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/formatter"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/urfave/cli/v3"
)

// SpotifyDevices lists playback devices.
func (r *Runner) SpotifyDevices(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	devices, err := a.Remote.Devices(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}

	if len(devices) == 0 {
		return r.writePlain("No devices found. Open Spotify on a phone, desktop or speaker.\n")
	}
	r.writePlain("Found %d devices:\n\n", len(devices))
	for i, d := range devices {
		status := ""
		switch {
		case d.IsActive:
			status = " (active)"
		case d.IsRestricted:
			status = " (restricted)"
		}
		r.writePlain("%d. %s [%s]%s\n", i+1, d.Name, d.Type, status)
		r.writePlain("   ID: %s\n", d.ID)
	}
	return nil
}

// SpotifyPlaylists lists the account's playlists.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	playlists, err := a.Remote.UserPlaylists(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// SpotifyNowPlaying shows current playback as reported by Spotify.
func (r *Runner) SpotifyNowPlaying(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	playback, err := a.Remote.CurrentPlayback(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playback, true)
	}

	snap := models.SnapshotOf(playback)
	r.writePlain("%s\n", formatter.NowPlaying(models.NowPlaying{Playing: snap != nil, Snapshot: snap}))
	if snap != nil && snap.ContextURI != "" {
		r.writePlain("Context: %s\n", snap.ContextURI)
	}
	return nil
}

// PlaylistsReconcile creates missing managed playlists and refills the overflow playlist.
func (r *Runner) PlaylistsReconcile(ctx context.Context, cmd *cli.Command) error {
	a, err := r.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	pl := a.Playlists
	for _, create := range []func(context.Context) (string, error){
		pl.GetOrCreateActive, pl.GetOrCreateOverflow, pl.GetOrCreateArchive,
	} {
		if _, err := create(ctx); err != nil {
			return err
		}
	}
	if err := pl.EnsureOverflowHasFixedSize(ctx, 0); err != nil {
		return fmt.Errorf("failed to refill overflow playlist: %w", err)
	}

	cache, err := pl.Snapshot(ctx, true)
	if err != nil {
		return err
	}

	r.writePlainHeader("Managed playlists")
	r.writePlain("Active:   %s (%d tracks)\n", pl.ActiveName(), len(cache.Active))
	r.writePlain("Overflow: %s (%d of %d tracks)\n", pl.OverflowName(), len(cache.Overflow), pl.OverflowSize())
	if name := pl.ArchiveName(); name != "" {
		r.writePlain("Archive:  %s\n", name)
	}
	return nil
}
