// package services defines interface Remote for the remote playback service
package services

import (
	"context"

	"github.com/desertthunder/crowdq/internal/models"
)

// Remote defines the operations consumed from the remote playback service.
type Remote interface {
	// SearchTracks returns up to limit tracks ranked by the service.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// Track retrieves a single track by reference.
	Track(ctx context.Context, id string) (*models.Track, error)

	// CurrentPlayback returns the device state, or nil when no device is active.
	CurrentPlayback(ctx context.Context) (*models.Playback, error)

	// Play starts playback of a context, optionally at a track offset.
	Play(ctx context.Context, opts models.PlayOptions) error

	// TransferPlayback moves playback to deviceID.
	TransferPlayback(ctx context.Context, deviceID string, play bool) error

	// Devices lists the user's playback devices.
	Devices(ctx context.Context) ([]models.Device, error)

	// UserPlaylists lists every playlist the user follows or owns.
	UserPlaylists(ctx context.Context) ([]models.Playlist, error)

	// CreatePlaylist creates a playlist owned by the user.
	CreatePlaylist(ctx context.Context, name string, opts models.PlaylistOptions) (*models.Playlist, error)

	// PlaylistTracks returns the playlist's tracks in order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// AddTracksToPlaylist inserts refs at position, or appends when position < 0.
	AddTracksToPlaylist(ctx context.Context, playlistID string, position int, refs ...string) error

	// RemoveTracksFromPlaylist removes every occurrence of refs.
	RemoveTracksFromPlaylist(ctx context.Context, playlistID string, refs ...string) error

	// SavedTracks returns one page of the user's saved library.
	SavedTracks(ctx context.Context, offset, limit int) (*models.TrackPage, error)

	// Name returns the name of the service (e.g. "Spotify")
	Name() string
}
