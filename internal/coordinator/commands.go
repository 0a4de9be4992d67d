package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/queue"
	"github.com/desertthunder/crowdq/internal/shared"
)

// AddSong resolves a request, adds it to the playlists and queues it with the requester's vote.
// A song that is already queued gets the requester's vote instead of a second entry.
// Seeded overflow songs other than the one playing are dropped from the queue.
func (c *Coordinator) AddSong(ctx context.Context, req models.AddSongRequest) models.AddResult {
	user := strings.TrimSpace(req.UserID)
	if user == "" {
		err := fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
		return models.AddResult{Error: shared.UserMessage(err)}
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	res, err := c.playlists.AddToPlaylists(ctx, strings.TrimSpace(req.Title), strings.TrimSpace(req.Ref), req.Priority)
	if err != nil {
		c.logger.Warn("add song failed", "user", user, "title", req.Title, "ref", req.Ref, "error", err)
		return res
	}

	prev, hadHead := c.queue.Peek()
	playing := c.currentRef()
	dropped := c.queue.RemoveWhere(func(s queue.Song) bool {
		return s.Source == models.SourceOverflow && s.TrackRef != playing
	})
	if dropped > 0 {
		c.logger.Debug("dropped seeded overflow songs", "count", dropped)
	}

	if idx := c.indexOf(res.TrackRef); idx >= 0 {
		c.queue.Vote(idx, user)
	} else {
		c.queue.Add(res.Title, res.TrackRef, user, models.SourceUser)
	}
	c.logger.Info("song added", "user", user, "title", res.Title, "ref", res.TrackRef, "priority", req.Priority)

	c.afterMutation(ctx, prev, hadHead)
	return res
}

// Vote adds user's vote to the song at the 0-based index.
func (c *Coordinator) Vote(ctx context.Context, index int, user string) bool {
	user = strings.TrimSpace(user)
	if user == "" {
		return false
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	prev, hadHead := c.queue.Peek()
	if !c.queue.Vote(index, user) {
		return false
	}
	c.afterMutation(ctx, prev, hadHead)
	return true
}

// afterMutation reacts to a new head: it moves the head to the front of the active
// playlist and starts playback when nothing is playing.
func (c *Coordinator) afterMutation(ctx context.Context, prev queue.Song, hadHead bool) {
	head, ok := c.queue.Peek()
	if !ok || (hadHead && head.TrackRef == prev.TrackRef) {
		return
	}
	if head.TrackRef == c.currentRef() {
		return
	}

	if head.Source == models.SourceUser {
		if err := c.playlists.PromoteInActive(ctx, head.TrackRef); err != nil {
			c.logger.Warn("failed to promote head", "ref", head.TrackRef, "error", err)
		}
	}
	if c.State() == NoTrack {
		if err := c.EnsurePlayingFromCorrectContext(ctx, false); err != nil {
			c.logger.Warn("could not start playback", "error", err)
		}
	}
}

func (c *Coordinator) indexOf(ref string) int {
	for i, s := range c.queue.List() {
		if s.TrackRef == ref {
			return i
		}
	}
	return -1
}

// Skip retires the first count songs (at least one) and returns their titles. When the
// playing track is among them, playback is switched to the next track.
func (c *Coordinator) Skip(ctx context.Context, count int) []string {
	if count < 1 {
		count = 1
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	playing := c.currentRef()
	skippedPlaying := false
	retired := []string{}
	for range count {
		s, ok := c.queue.RemoveFirst()
		if !ok {
			break
		}
		retired = append(retired, s.Title)
		if s.TrackRef == playing {
			skippedPlaying = true
		}
		if err := c.playlists.HandleTrackRemoval(ctx, s.TrackRef, 1); err != nil {
			c.logger.Warn("failed to retire skipped song", "ref", s.TrackRef, "error", err)
		}
	}
	if len(retired) == 0 {
		return retired
	}
	c.logger.Info("skipped songs", "count", len(retired), "playing", skippedPlaying)

	if skippedPlaying {
		c.setIdle()
		if err := c.EnsurePlayingFromCorrectContext(ctx, true); err != nil {
			c.logger.Warn("could not advance playback", "error", err)
		}
	}
	c.seedIfEmpty(ctx)
	return retired
}

// GetQueue returns the ranked queue with 1-based positions.
func (c *Coordinator) GetQueue() []models.QueueEntry {
	return c.queue.Entries()
}

// NowPlaying reports the track the coordinator is tracking.
func (c *Coordinator) NowPlaying() models.NowPlaying {
	cur := c.Current()
	return models.NowPlaying{Playing: cur != nil, Snapshot: cur}
}
