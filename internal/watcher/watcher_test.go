package watcher

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
	tu "github.com/desertthunder/crowdq/internal/testing"
)

func newTestWatcher(t *testing.T) (*Watcher, *tu.FakeRemote, *events.Subscription) {
	t.Helper()
	remote := tu.NewFakeRemote()
	q := tasks.NewQueue(tasks.Opts{})
	t.Cleanup(q.Close)
	bus := events.NewBus(nil)
	sub := bus.Subscribe(16)
	t.Cleanup(bus.Close)
	return New(remote, q, bus, Options{}), remote, sub
}

func drain(sub *events.Subscription) (changed []events.TrackChanged, now []events.NowPlaying) {
	for {
		select {
		case e := <-sub.TrackChanged:
			changed = append(changed, e)
		case e := <-sub.NowPlaying:
			now = append(now, e)
		default:
			return changed, now
		}
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing playing emits nothing", func(t *testing.T) {
		w, remote, sub := newTestWatcher(t)

		for range 3 {
			obs, err := w.Check(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obs.Playing() || obs.Changed {
				t.Errorf("unexpected observation %+v", obs)
			}
		}
		remote.Stop()
		if _, err := w.Check(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		changed, now := drain(sub)
		if len(changed) != 0 || len(now) != 0 {
			t.Errorf("expected no events, got %d changed and %d now playing", len(changed), len(now))
		}
		if w.Last() != nil {
			t.Errorf("expected no snapshot, got %+v", w.Last())
		}
	})

	t.Run("first track only reports now playing", func(t *testing.T) {
		w, remote, sub := newTestWatcher(t)
		track := remote.AddTracks(1)[0]
		remote.SetPlaying(track.ID, "", 1000)

		obs, err := w.Check(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !obs.Changed || obs.Previous != nil || obs.Current.TrackRef != track.ID {
			t.Errorf("unexpected observation %+v", obs)
		}

		changed, now := drain(sub)
		if len(changed) != 0 {
			t.Errorf("expected no track changed events, got %d", len(changed))
		}
		if len(now) != 1 || now[0].Current.TrackRef != track.ID {
			t.Errorf("expected one now playing event for %s, got %+v", track.ID, now)
		}
	})

	t.Run("transition is reported once", func(t *testing.T) {
		w, remote, sub := newTestWatcher(t)
		tracks := remote.AddTracks(2)

		remote.SetPlaying(tracks[0].ID, "", 0)
		_, _ = w.Check(ctx)
		remote.SetPlaying(tracks[1].ID, "", 0)
		for range 3 {
			if _, err := w.Check(ctx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		changed, now := drain(sub)
		if len(changed) != 1 {
			t.Fatalf("expected 1 transition, got %d", len(changed))
		}
		if changed[0].Previous.TrackRef != tracks[0].ID || changed[0].Current.TrackRef != tracks[1].ID {
			t.Errorf("unexpected transition %+v", changed[0])
		}
		if len(now) != 2 {
			t.Errorf("expected 2 now playing events, got %d", len(now))
		}
	})

	t.Run("same track refreshes progress without events", func(t *testing.T) {
		w, remote, sub := newTestWatcher(t)
		track := remote.AddTracks(1)[0]

		remote.SetPlaying(track.ID, "", 1000)
		_, _ = w.Check(ctx)
		drain(sub)

		remote.SetPlaying(track.ID, "", 5000)
		obs, err := w.Check(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obs.Changed {
			t.Error("expected no change")
		}
		if got := w.Last().ProgressMS; got != 5000 {
			t.Errorf("expected progress 5000, got %d", got)
		}
		if changed, now := drain(sub); len(changed)+len(now) != 0 {
			t.Error("expected no events")
		}
	})

	t.Run("pause keeps the snapshot", func(t *testing.T) {
		w, remote, sub := newTestWatcher(t)
		track := remote.AddTracks(1)[0]

		remote.SetPlaying(track.ID, "", 0)
		_, _ = w.Check(ctx)
		remote.Stop()
		_, _ = w.Check(ctx)
		if w.Last() == nil || w.Last().TrackRef != track.ID {
			t.Fatalf("expected snapshot for %s, got %+v", track.ID, w.Last())
		}

		remote.SetPlaying(track.ID, "", 0)
		_, _ = w.Check(ctx)
		changed, now := drain(sub)
		if len(changed) != 0 || len(now) != 1 {
			t.Errorf("expected only the first now playing event, got %d changed and %d now playing", len(changed), len(now))
		}
	})

	t.Run("poll failure keeps state", func(t *testing.T) {
		w, remote, _ := newTestWatcher(t)
		remote.FailNext("CurrentPlayback", shared.ErrServiceUnavailable)

		if _, err := w.Check(ctx); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if w.Last() != nil {
			t.Error("expected no snapshot")
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("debounces triggers and polls on the interval", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			remote := tu.NewFakeRemote()
			q := tasks.NewQueue(tasks.Opts{})
			defer q.Close()
			w := New(remote, q, events.NewBus(nil), Options{Interval: 5 * time.Second, Debounce: time.Second})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			time.Sleep(1500 * time.Millisecond)
			synctest.Wait()
			if got := remote.Calls("CurrentPlayback"); got != 1 {
				t.Fatalf("expected initial check, got %d", got)
			}

			for range 5 {
				w.Trigger()
			}
			time.Sleep(1500 * time.Millisecond)
			synctest.Wait()
			if got := remote.Calls("CurrentPlayback"); got != 2 {
				t.Errorf("expected triggers to collapse into 1 check, got %d total", got)
			}

			time.Sleep(3500 * time.Millisecond)
			synctest.Wait()
			if got := remote.Calls("CurrentPlayback"); got != 3 {
				t.Errorf("expected interval check, got %d total", got)
			}

			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	})
}
