package events

import (
	"testing"
	"testing/synctest"

	"github.com/desertthunder/crowdq/internal/models"
)

func snapshot(ref string) models.Snapshot {
	return models.Snapshot{TrackRef: ref, Name: ref}
}

func TestBus(t *testing.T) {
	t.Run("Fan Out", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := NewBus(nil)
			a, b := bus.Subscribe(0), bus.Subscribe(0)

			bus.PublishTrackChanged(TrackChanged{Previous: snapshot("x"), Current: snapshot("y")})
			bus.PublishNowPlaying(NowPlaying{Current: snapshot("y")})

			for _, sub := range []*Subscription{a, b} {
				if e := <-sub.TrackChanged; e.Previous.TrackRef != "x" || e.Current.TrackRef != "y" {
					t.Errorf("unexpected event %+v", e)
				}
				if e := <-sub.NowPlaying; e.Current.TrackRef != "y" {
					t.Errorf("unexpected event %+v", e)
				}
			}
		})
	})

	t.Run("Non Blocking Drops When Full", func(t *testing.T) {
		bus := NewBus(nil)
		sub := bus.Subscribe(1)

		bus.PublishNowPlaying(NowPlaying{Current: snapshot("a")})
		bus.PublishNowPlaying(NowPlaying{Current: snapshot("b")})

		if sub.Dropped() != 1 {
			t.Errorf("expected 1 dropped event, got %d", sub.Dropped())
		}
		if e := <-sub.NowPlaying; e.Current.TrackRef != "a" {
			t.Errorf("expected first event to be kept, got %s", e.Current.TrackRef)
		}
	})

	t.Run("Unsubscribe Signals Done", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := NewBus(nil)
			sub := bus.Subscribe(0)
			bus.Unsubscribe(sub)
			<-sub.Done

			bus.PublishNowPlaying(NowPlaying{Current: snapshot("a")})
			if len(sub.NowPlaying) != 0 {
				t.Error("expected no delivery after unsubscribe")
			}
			if bus.Subscribers() != 0 {
				t.Errorf("expected 0 subscribers, got %d", bus.Subscribers())
			}
		})
	})

	t.Run("Close", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := NewBus(nil)
			sub := bus.Subscribe(0)
			bus.Close()
			bus.Close()
			<-sub.Done

			late := bus.Subscribe(0)
			<-late.Done
			bus.Unsubscribe(late)
		})
	})
}

func TestKind(t *testing.T) {
	if KindTrackChanged.String() != "track_changed" || KindNowPlaying.String() != "now_playing" {
		t.Error("unexpected kind names")
	}
}
