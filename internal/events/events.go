// Package events is the publish/subscribe channel between the playback watcher and its
// consumers. The vocabulary is fixed: [TrackChanged] and [NowPlaying].
//
// Delivery is at most once per subscriber and never blocks the publisher. Handlers
// must be idempotent: a reconnecting display may see the same event twice.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// DefaultBuffer is the per-channel buffer of a subscription created with buffer <= 0.
const DefaultBuffer = 16

// Kind names an event type on the wire.
type Kind int

const (
	KindTrackChanged Kind = iota
	KindNowPlaying
)

func (k Kind) String() string {
	switch k {
	case KindTrackChanged:
		return "track_changed"
	case KindNowPlaying:
		return "now_playing"
	default:
		return ""
	}
}

// TrackChanged reports a transition from Previous to Current.
type TrackChanged struct {
	Previous models.Snapshot `json:"previous"`
	Current  models.Snapshot `json:"current"`
	At       time.Time       `json:"at"`
}

// NowPlaying reports the track observed after a transition, including the first one.
type NowPlaying struct {
	Current models.Snapshot `json:"current"`
	At      time.Time       `json:"at"`
}

// Subscription provides event channels for one subscriber.
type Subscription struct {
	TrackChanged <-chan TrackChanged
	NowPlaying   <-chan NowPlaying
	Done         <-chan struct{}

	trackCh   chan TrackChanged
	nowCh     chan NowPlaying
	doneCh    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

func newSubscription(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		trackCh: make(chan TrackChanged, buffer),
		nowCh:   make(chan NowPlaying, buffer),
		doneCh:  make(chan struct{}),
	}
	s.TrackChanged = s.trackCh
	s.NowPlaying = s.nowCh
	s.Done = s.doneCh
	return s
}

// Dropped reports how many events were discarded because a buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.doneCh) })
}

func (s *Subscription) sendTrack(e TrackChanged) bool {
	select {
	case s.trackCh <- e:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Subscription) sendNow(e NowPlaying) bool {
	select {
	case s.nowCh <- e:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Bus fans events out to subscribers.
type Bus struct {
	logger *log.Logger

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		logger: shared.WithLogger(logger, "component", "events"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber whose channels hold buffer events each.
// Subscribing to a closed bus returns a subscription whose Done is already closed.
func (b *Bus) Subscribe(buffer int) *Subscription {
	s := newSubscription(buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.close()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its Done channel.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	s.close()
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PublishTrackChanged delivers e to every subscriber without blocking.
func (b *Bus) PublishTrackChanged(e TrackChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.sendTrack(e) {
			b.logger.Warn("dropped event", "kind", KindTrackChanged, "track_ref", e.Current.TrackRef)
		}
	}
}

// PublishNowPlaying delivers e to every subscriber without blocking.
func (b *Bus) PublishNowPlaying(e NowPlaying) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.sendNow(e) {
			b.logger.Debug("dropped event", "kind", KindNowPlaying, "track_ref", e.Current.TrackRef)
		}
	}
}

// Close closes every subscription's Done channel. Later subscriptions start closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
	}
	b.subs = make(map[*Subscription]struct{})
}
