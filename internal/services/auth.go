package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Refresher renews credentials.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TokenGuard retries a call once after refreshing credentials when it fails with [shared.ErrTokenExpired].
//
// Concurrent callers that hit an expired token share one refresh: a caller whose
// call started before the latest refresh completed retries without refreshing again.
type TokenGuard struct {
	refresher Refresher
	logger    *log.Logger

	mu         sync.Mutex
	generation uint64
	refreshes  int
}

// NewTokenGuard creates a guard around r.
func NewTokenGuard(r Refresher, logger *log.Logger) *TokenGuard {
	return &TokenGuard{refresher: r, logger: shared.WithLogger(logger, "component", "auth")}
}

// Execute runs op, refreshing and retrying at most once on an expired token.
func (g *TokenGuard) Execute(ctx context.Context, op func(context.Context) error) error {
	g.mu.Lock()
	seen := g.generation
	g.mu.Unlock()

	err := op(ctx)
	if !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	if rerr := g.refreshAfter(ctx, seen); rerr != nil {
		g.logger.Error("token refresh failed", "error", rerr)
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, rerr)
	}

	err = op(ctx)
	if errors.Is(err, shared.ErrTokenExpired) {
		g.logger.Error("still unauthorized after refresh", "error", err)
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return err
}

// Guarded runs op through g and returns its value.
func Guarded[T any](ctx context.Context, g *TokenGuard, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// refreshAfter refreshes unless another caller already did so since generation seen.
func (g *TokenGuard) refreshAfter(ctx context.Context, seen uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation != seen {
		return nil
	}
	return g.refreshLocked(ctx)
}

func (g *TokenGuard) refreshLocked(ctx context.Context) error {
	if err := g.refresher.Refresh(ctx); err != nil {
		return err
	}
	g.generation++
	g.refreshes++
	g.logger.Debug("token refreshed", "refreshes", g.refreshes)
	return nil
}

// Refresh forces a credential refresh.
func (g *TokenGuard) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshLocked(ctx)
}

// Refreshes reports how many refreshes have succeeded.
func (g *TokenGuard) Refreshes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshes
}

// Run refreshes credentials every interval until ctx is done. Failures are logged and retried on the next tick.
func (g *TokenGuard) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Refresh(ctx); err != nil {
				g.logger.Warn("scheduled token refresh failed", "error", err)
			}
		}
	}
}

// GuardedRemote applies a [TokenGuard] to every call of the wrapped [Remote].
type GuardedRemote struct {
	remote Remote
	guard  *TokenGuard
}

// NewGuardedRemote wraps remote.
func NewGuardedRemote(remote Remote, guard *TokenGuard) *GuardedRemote {
	return &GuardedRemote{remote: remote, guard: guard}
}

func (r *GuardedRemote) Name() string { return r.remote.Name() }

func (r *GuardedRemote) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	return Guarded(ctx, r.guard, func(ctx context.Context) ([]models.Track, error) {
		return r.remote.SearchTracks(ctx, query, limit)
	})
}

func (r *GuardedRemote) Track(ctx context.Context, id string) (*models.Track, error) {
	return Guarded(ctx, r.guard, func(ctx context.Context) (*models.Track, error) {
		return r.remote.Track(ctx, id)
	})
}

func (r *GuardedRemote) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	return Guarded(ctx, r.guard, r.remote.CurrentPlayback)
}

func (r *GuardedRemote) Play(ctx context.Context, opts models.PlayOptions) error {
	return r.guard.Execute(ctx, func(ctx context.Context) error {
		return r.remote.Play(ctx, opts)
	})
}

func (r *GuardedRemote) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	return r.guard.Execute(ctx, func(ctx context.Context) error {
		return r.remote.TransferPlayback(ctx, deviceID, play)
	})
}

func (r *GuardedRemote) Devices(ctx context.Context) ([]models.Device, error) {
	return Guarded(ctx, r.guard, r.remote.Devices)
}

func (r *GuardedRemote) UserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return Guarded(ctx, r.guard, r.remote.UserPlaylists)
}

func (r *GuardedRemote) CreatePlaylist(ctx context.Context, name string, opts models.PlaylistOptions) (*models.Playlist, error) {
	return Guarded(ctx, r.guard, func(ctx context.Context) (*models.Playlist, error) {
		return r.remote.CreatePlaylist(ctx, name, opts)
	})
}

func (r *GuardedRemote) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	return Guarded(ctx, r.guard, func(ctx context.Context) ([]models.Track, error) {
		return r.remote.PlaylistTracks(ctx, playlistID)
	})
}

func (r *GuardedRemote) AddTracksToPlaylist(ctx context.Context, playlistID string, position int, refs ...string) error {
	return r.guard.Execute(ctx, func(ctx context.Context) error {
		return r.remote.AddTracksToPlaylist(ctx, playlistID, position, refs...)
	})
}

func (r *GuardedRemote) RemoveTracksFromPlaylist(ctx context.Context, playlistID string, refs ...string) error {
	return r.guard.Execute(ctx, func(ctx context.Context) error {
		return r.remote.RemoveTracksFromPlaylist(ctx, playlistID, refs...)
	})
}

func (r *GuardedRemote) SavedTracks(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	return Guarded(ctx, r.guard, func(ctx context.Context) (*models.TrackPage, error) {
		return r.remote.SavedTracks(ctx, offset, limit)
	})
}

var _ Remote = (*GuardedRemote)(nil)
