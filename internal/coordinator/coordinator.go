package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/playlists"
	"github.com/desertthunder/crowdq/internal/queue"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
	"github.com/desertthunder/crowdq/internal/watcher"
)

// State of the coordinator's state machine.
type State int

const (
	NoTrack State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case NoTrack:
		return "no_track"
	case Playing:
		return "playing"
	default:
		return ""
	}
}

const (
	DefaultSystemUser    = "crowdq"
	DefaultTrackEndGrace = 2 * time.Second
	DefaultEventBuffer   = 256
)

// Options configures a [Coordinator].
type Options struct {
	SystemUser    string        // AddedBy of seeded songs
	TrackEndGrace time.Duration // added to the predicted end before the advisory timer fires
	EventBuffer   int
	Logger        *log.Logger
}

// Coordinator keeps the collaborative queue, the managed playlists and the remote
// device converging on one current track.
type Coordinator struct {
	remote    services.Remote
	ops       *tasks.Queue
	queue     *queue.Queue
	playlists *playlists.Reconciler
	watcher   *watcher.Watcher
	bus       *events.Bus
	opts      Options
	logger    *log.Logger

	turn sync.Mutex // one state machine step at a time

	mu      sync.Mutex
	state   State
	current *models.Snapshot
	timer   *time.Timer
	expired chan string
}

// New wires a coordinator. The queue, reconciler and watcher must share ops and remote.
func New(remote services.Remote, ops *tasks.Queue, q *queue.Queue, r *playlists.Reconciler, w *watcher.Watcher, bus *events.Bus, opts Options) *Coordinator {
	if opts.SystemUser == "" {
		opts.SystemUser = DefaultSystemUser
	}
	if opts.TrackEndGrace <= 0 {
		opts.TrackEndGrace = DefaultTrackEndGrace
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	return &Coordinator{
		remote:    remote,
		ops:       ops,
		queue:     q,
		playlists: r,
		watcher:   w,
		bus:       bus,
		opts:      opts,
		logger:    shared.WithLogger(opts.Logger, "component", "coordinator"),
		expired:   make(chan string, 1),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns a copy of the track the coordinator believes is playing, or nil.
func (c *Coordinator) Current() *models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

func (c *Coordinator) currentRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.TrackRef
}

func (c *Coordinator) setPlaying(s models.Snapshot) {
	c.mu.Lock()
	c.state = Playing
	c.current = &s
	c.mu.Unlock()
	c.arm(s)
}

func (c *Coordinator) setIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = NoTrack
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// arm replaces the advisory timer with one for the predicted end of s.
func (c *Coordinator) arm(s models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	ref := s.TrackRef
	c.timer = time.AfterFunc(s.Remaining()+c.opts.TrackEndGrace, func() {
		select {
		case c.expired <- ref:
		default:
		}
	})
}

func (c *Coordinator) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Subscribe registers the coordinator's bus subscription for [Coordinator.Listen].
// Subscribing before the watcher starts guarantees the first NowPlaying is delivered.
func (c *Coordinator) Subscribe() *events.Subscription {
	return c.bus.Subscribe(c.opts.EventBuffer)
}

// Run subscribes and listens. See [Coordinator.Listen].
func (c *Coordinator) Run(ctx context.Context) error {
	return c.Listen(ctx, c.Subscribe())
}

// Listen consumes watcher events from sub and advisory timer expiries until ctx ends or
// the bus closes. sub is unsubscribed on return.
func (c *Coordinator) Listen(ctx context.Context, sub *events.Subscription) error {
	defer c.bus.Unsubscribe(sub)
	defer c.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done:
			return nil
		case e := <-sub.TrackChanged:
			if err := c.HandleTrackChanged(ctx, e); err != nil {
				c.logger.Warn("transition handling incomplete", "error", err, "previous", e.Previous.TrackRef)
			}
		case e := <-sub.NowPlaying:
			c.HandleNowPlaying(ctx, e)
		case ref := <-c.expired:
			c.HandleTrackTimer(ctx, ref)
		}
		if n := sub.Dropped(); n > 0 {
			c.logger.Warn("events dropped", "count", n)
		}
	}
}

// HandleNowPlaying records the observed track and arms the advisory timer. Stale events,
// for a track the watcher has already moved past, are ignored.
func (c *Coordinator) HandleNowPlaying(ctx context.Context, e events.NowPlaying) {
	c.turn.Lock()
	defer c.turn.Unlock()

	if last := c.watcher.Last(); last != nil && last.TrackRef != e.Current.TrackRef {
		c.logger.Debug("ignoring stale now playing", "ref", e.Current.TrackRef, "latest", last.TrackRef)
		return
	}
	c.setPlaying(e.Current)
	c.seedIfEmpty(ctx)
}

// HandleTrackChanged retires the previous track, applies the boundary preference and
// reseeds an empty queue. It is idempotent: replaying an event retires nothing new.
func (c *Coordinator) HandleTrackChanged(ctx context.Context, e events.TrackChanged) error {
	c.turn.Lock()
	defer c.turn.Unlock()

	if last := c.watcher.Last(); last == nil || last.TrackRef == e.Current.TrackRef {
		c.setPlaying(e.Current)
	}

	err := c.retire(ctx, e.Previous.TrackRef)
	c.preferActive(ctx, e.Current)
	c.seedIfEmpty(ctx)
	return err
}

// HandleTrackTimer runs when the advisory timer for ref fires. It polls first: a
// transition or a still playing track leaves the decision to the watcher, and a track
// paused before its end only re-arms the timer. Only when nothing is playing does the
// timer retire ref and restart playback.
func (c *Coordinator) HandleTrackTimer(ctx context.Context, ref string) {
	c.turn.Lock()
	defer c.turn.Unlock()

	if c.currentRef() != ref {
		return
	}

	obs, err := c.watcher.Check(ctx)
	switch {
	case err != nil:
		c.logger.Warn("advisory poll failed", "ref", ref, "error", err)
		return
	case obs.Changed:
		c.logger.Debug("advisory timer superseded by transition", "ref", ref)
		return
	case obs.Playing():
		c.arm(*obs.Current)
		return
	case pausedBeforeEnd(obs.Loaded, ref, c.opts.TrackEndGrace):
		c.logger.Debug("track paused, advisory timer re-armed", "ref", ref, "progress", obs.Loaded.ProgressMS)
		c.arm(*obs.Loaded)
		return
	}

	c.logger.Info("track ended without a transition", "ref", ref)
	if err := c.retire(ctx, ref); err != nil {
		c.logger.Warn("failed to retire track", "ref", ref, "error", err)
	}
	c.setIdle()
	if err := c.EnsurePlayingFromCorrectContext(ctx, false); err != nil {
		c.logger.Warn("could not resume playback", "error", err)
	}
	c.seedIfEmpty(ctx)
}

// pausedBeforeEnd reports whether loaded is ref stopped more than grace before its end.
func pausedBeforeEnd(loaded *models.Snapshot, ref string, grace time.Duration) bool {
	return loaded != nil && loaded.TrackRef == ref && loaded.Remaining() > grace
}

// retire drops ref from the collaborative queue and the playback playlists.
func (c *Coordinator) retire(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if head, ok := c.queue.Peek(); ok && head.TrackRef == ref {
		c.queue.RemoveFirst()
		c.logger.Debug("popped finished head", "ref", ref, "title", head.Title)
	} else if s, ok := c.queue.RemoveRef(ref); ok {
		c.logger.Debug("removed finished song", "ref", ref, "title", s.Title)
	}
	return c.playlists.HandleTrackRemoval(ctx, ref, 1)
}
