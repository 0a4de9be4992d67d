// Package watcher polls the remote service's current playback and reports track transitions.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultDebounce = time.Second
)

// Options configures a [Watcher].
type Options struct {
	Interval time.Duration
	Debounce time.Duration
	Logger   *log.Logger
}

// Observation is the outcome of one poll.
type Observation struct {
	Previous *models.Snapshot // snapshot held before the poll
	Current  *models.Snapshot // nil when nothing is playing
	Loaded   *models.Snapshot // track on the device, playing or paused
	Changed  bool             // Current.TrackRef differs from Previous
}

// Playing reports whether the poll saw a track playing.
func (o Observation) Playing() bool { return o.Current != nil }

// Watcher holds the last observed [models.Snapshot] and publishes transitions on a bus.
type Watcher struct {
	remote services.Remote
	ops    *tasks.Queue
	bus    *events.Bus
	opts   Options
	logger *log.Logger

	checkMu sync.Mutex
	mu      sync.RWMutex
	last    *models.Snapshot

	trigger chan struct{}
}

// New creates a watcher that polls remote through ops and publishes to bus.
func New(remote services.Remote, ops *tasks.Queue, bus *events.Bus, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		remote:  remote,
		ops:     ops,
		bus:     bus,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "watcher"),
		trigger: make(chan struct{}, 1),
	}
}

// Last returns a copy of the last observed snapshot, or nil.
func (w *Watcher) Last() *models.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return nil
	}
	cp := *w.last
	return &cp
}

// Trigger asks [Watcher.Run] for a check. Triggers inside the debounce window collapse into one.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Check polls the remote service once, bypassing the debounce.
//
// Nothing playing leaves the stored snapshot as it is. A different track reference
// replaces it and publishes TrackChanged (when a previous snapshot existed) followed by
// NowPlaying. The same reference only refreshes progress.
func (w *Watcher) Check(ctx context.Context) (Observation, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	playback, err := tasks.Do(ctx, w.ops, "poll current playback", w.remote.CurrentPlayback, tasks.WithPriority())
	if err != nil {
		return Observation{Previous: w.Last()}, err
	}

	obs := Observation{Previous: w.Last(), Loaded: models.SnapshotOf(playback)}
	if obs.Loaded == nil || !playback.IsPlaying {
		return obs, nil
	}
	current := obs.Loaded
	obs.Current = current

	w.mu.Lock()
	prev := w.last
	snap := *current
	w.last = &snap
	w.mu.Unlock()

	if prev != nil && prev.TrackRef == current.TrackRef {
		return obs, nil
	}

	obs.Changed = true
	now := time.Now()
	if prev != nil {
		w.logger.Info("track changed", "from", prev.Name, "to", current.Name, "ref", current.TrackRef)
		w.bus.PublishTrackChanged(events.TrackChanged{Previous: *prev, Current: *current, At: now})
	} else {
		w.logger.Info("now playing", "track", current.Name, "ref", current.TrackRef)
	}
	w.bus.PublishNowPlaying(events.NowPlaying{Current: *current, At: now})
	return obs, nil
}

// Run polls every Interval until ctx ends. Each tick or [Watcher.Trigger] arms the
// debounce timer, and the check runs when it fires. The first check runs one debounce
// window after start.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		timer    *time.Timer
		debounce <-chan time.Time
	)
	arm := func() {
		if debounce != nil {
			return
		}
		timer = time.NewTimer(w.opts.Debounce)
		debounce = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Debug("watching playback", "interval", w.opts.Interval, "debounce", w.opts.Debounce)
	arm()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			arm()
		case <-w.trigger:
			arm()
		case <-debounce:
			debounce = nil
			if _, err := w.Check(ctx); err != nil {
				if ctx.Err() != nil || errors.Is(err, shared.ErrQueueClosed) {
					return ctx.Err()
				}
				w.logger.Warn("playback poll failed", "error", err)
			}
		}
	}
}
