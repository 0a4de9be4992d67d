package models

import (
	"testing"
	"time"
)

func TestTrack(t *testing.T) {
	track := Track{ID: "4uLU6hMCjMI75M1A2tKUQC", Title: "Never Gonna Give You Up", Artists: []string{"Rick Astley"}, DurationMS: 213000}

	if got := track.Label(); got != "Never Gonna Give You Up - Rick Astley" {
		t.Errorf("unexpected label %q", got)
	}
	if got := track.Duration(); got != 213*time.Second {
		t.Errorf("expected 213s, got %v", got)
	}
	if got := (Track{Title: "Solo"}).Label(); got != "Solo" {
		t.Errorf("expected bare title, got %q", got)
	}
}

func TestSnapshotOf(t *testing.T) {
	t.Run("nothing loaded", func(t *testing.T) {
		if s := SnapshotOf(&Playback{}); s != nil {
			t.Errorf("expected nil snapshot, got %+v", s)
		}
		if s := SnapshotOf(nil); s != nil {
			t.Errorf("expected nil snapshot, got %+v", s)
		}
	})

	t.Run("playing", func(t *testing.T) {
		p := &Playback{
			Track:      &Track{ID: "abc", Title: "Song", Artists: []string{"A"}, DurationMS: 10000},
			ProgressMS: 4000,
			ContextURI: "spotify:playlist:x",
		}
		s := SnapshotOf(p)
		if s == nil {
			t.Fatal("expected snapshot")
		}
		if s.TrackRef != "abc" || s.ContextURI != "spotify:playlist:x" {
			t.Errorf("unexpected snapshot %+v", s)
		}
		if s.Remaining() != 6*time.Second {
			t.Errorf("expected 6s remaining, got %v", s.Remaining())
		}
	})

	t.Run("remaining never negative", func(t *testing.T) {
		s := Snapshot{DurationMS: 1000, ProgressMS: 5000}
		if s.Remaining() != 0 {
			t.Errorf("expected 0, got %v", s.Remaining())
		}
	})
}

func TestCatalogTrackValidate(t *testing.T) {
	if err := (&CatalogTrack{Ref: "abc"}).Validate(); err == nil {
		t.Error("expected error for missing title")
	}
	if err := (&CatalogTrack{Title: "x"}).Validate(); err == nil {
		t.Error("expected error for missing ref")
	}
	if err := (&CatalogTrack{Ref: "abc", Title: "x"}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
