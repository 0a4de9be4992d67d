package coordinator

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
)

// EnsurePlayingFromCorrectContext targets the active playlist when it has tracks and the
// overflow playlist otherwise, topping the overflow up first. Playback is switched when
// force is set, when nothing is playing, or when the device plays an unmanaged context.
func (c *Coordinator) EnsurePlayingFromCorrectContext(ctx context.Context, force bool) error {
	cache, err := c.playlists.Snapshot(ctx, false)
	if err != nil {
		return err
	}

	target, which := cache.ActiveURI(), "active"
	if len(cache.Active) == 0 {
		if err := c.playlists.EnsureOverflowHasFixedSize(ctx, 0); err != nil {
			c.logger.Warn("overflow check failed", "error", err)
		}
		target, which = cache.OverflowURI(), "overflow"
	}

	if !force {
		pb, err := tasks.Do(ctx, c.ops, "check playback context", c.remote.CurrentPlayback, tasks.WithPriority())
		if err != nil {
			return err
		}
		if pb != nil && pb.IsPlaying && pb.Track != nil && cache.Managed(pb.ContextURI) {
			return nil
		}
	}

	offset := ""
	if which == "active" {
		if head, ok := c.queue.Peek(); ok && cache.InActive(head.TrackRef) {
			offset = services.TrackURI(head.TrackRef)
		}
	}

	if err := c.switchTo(ctx, target, offset); err != nil {
		return err
	}
	c.logger.Info("switched playback", "playlist", which, "force", force, "offset", offset)
	c.watcher.Trigger()
	return nil
}

// switchTo is one critical operation: pick a device, transfer to it if needed and play.
func (c *Coordinator) switchTo(ctx context.Context, contextURI, offsetURI string) error {
	_, err := tasks.Do(ctx, c.ops, "switch playback context", func(ctx context.Context) (any, error) {
		devices, err := c.remote.Devices(ctx)
		if err != nil {
			return nil, err
		}
		device, ok := selectDevice(devices)
		if !ok {
			return nil, fmt.Errorf("%w: %d devices, none usable", shared.ErrNoDevice, len(devices))
		}
		if !device.IsActive {
			if err := c.remote.TransferPlayback(ctx, device.ID, false); err != nil {
				return nil, fmt.Errorf("failed to transfer playback to %s: %w", device.Name, err)
			}
		}
		return nil, c.remote.Play(ctx, models.PlayOptions{DeviceID: device.ID, ContextURI: contextURI, OffsetURI: offsetURI})
	})
	return err
}

// selectDevice prefers the active device, then the first one that accepts commands.
func selectDevice(devices []models.Device) (models.Device, bool) {
	for _, d := range devices {
		if d.IsActive && !d.IsRestricted {
			return d, true
		}
	}
	for _, d := range devices {
		if !d.IsRestricted {
			return d, true
		}
	}
	return models.Device{}, false
}

// preferActive switches to the active playlist at a track boundary when the device is
// playing the overflow playlist while requests are waiting.
func (c *Coordinator) preferActive(ctx context.Context, current models.Snapshot) {
	cache, err := c.playlists.Snapshot(ctx, false)
	if err != nil {
		c.logger.Warn("playlist cache unavailable", "error", err)
		return
	}

	force := services.PlaylistIDFromURI(current.ContextURI) == cache.OverflowID && len(cache.Active) > 0
	if !force && cache.Managed(current.ContextURI) {
		return
	}
	if err := c.EnsurePlayingFromCorrectContext(ctx, force); err != nil {
		c.logger.Warn("could not switch playback context", "error", err)
	}
}

// seedIfEmpty fills an empty collaborative queue from the active playlist, or from the
// overflow playlist when the active one is empty.
func (c *Coordinator) seedIfEmpty(ctx context.Context) {
	if c.queue.Len() > 0 {
		return
	}
	cache, err := c.playlists.Snapshot(ctx, false)
	if err != nil {
		c.logger.Warn("cannot seed queue", "error", err)
		return
	}

	refs, source := cache.Active, models.SourceActive
	if len(refs) == 0 {
		refs, source = cache.Overflow, models.SourceOverflow
	}
	for _, ref := range refs {
		if c.queue.Contains(ref) {
			continue
		}
		title := ref
		if t, err := c.playlists.TrackInfo(ctx, ref); err == nil {
			title = t.Label()
		}
		c.queue.Add(title, ref, c.opts.SystemUser, source)
	}
	if len(refs) > 0 {
		c.logger.Debug("seeded queue", "source", source, "count", len(refs))
	}
}

// Bootstrap prepares a fresh instance: it resolves the managed playlists, enforces the
// overflow size, seeds the queue and, when resume is set, starts playback.
func (c *Coordinator) Bootstrap(ctx context.Context, resume bool) error {
	c.turn.Lock()
	defer c.turn.Unlock()

	if _, err := c.playlists.Snapshot(ctx, true); err != nil {
		return fmt.Errorf("failed to resolve playlists: %w", err)
	}
	if err := c.playlists.EnsureOverflowHasFixedSize(ctx, 0); err != nil {
		c.logger.Warn("overflow check failed", "error", err)
	}
	c.seedIfEmpty(ctx)

	if !resume {
		return nil
	}
	if err := c.EnsurePlayingFromCorrectContext(ctx, false); err != nil {
		c.logger.Warn("could not resume playback", "error", err)
	}
	return nil
}
