package queue

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
)

// tickingClock advances one second per call so AddedAt is strictly increasing.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func titles(songs []Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Title
	}
	return out
}

func assertOrder(t *testing.T, q *Queue, want ...string) {
	t.Helper()
	got := titles(q.List())
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func assertInvariants(t *testing.T, songs []Song) {
	t.Helper()
	for i, s := range songs {
		if s.Votes != len(s.Voters) {
			t.Fatalf("song %q has %d votes but %d voters", s.Title, s.Votes, len(s.Voters))
		}
		if i == 0 {
			continue
		}
		prev := songs[i-1]
		if prev.Votes < s.Votes {
			t.Fatalf("votes not descending at %d: %d < %d", i, prev.Votes, s.Votes)
		}
		if prev.Votes == s.Votes && prev.AddedAt.After(s.AddedAt) {
			t.Fatalf("tie not ordered by addedAt at %d", i)
		}
	}
}

func TestQueue(t *testing.T) {
	t.Run("Scenario Vote Then Pop", func(t *testing.T) {
		q := New(WithClock(tickingClock()))
		q.Add("A", "a", "u1", models.SourceUser)
		q.Add("B", "b", "u2", models.SourceUser)
		assertOrder(t, q, "A", "B")

		if !q.Vote(1, "u3") {
			t.Fatal("expected vote to be accepted")
		}
		assertOrder(t, q, "B", "A")

		head, ok := q.RemoveFirst()
		if !ok || head.Title != "B" {
			t.Fatalf("expected to pop B, got %+v", head)
		}
		assertOrder(t, q, "A")
	})

	t.Run("Tie Keeps Insertion Order With Equal Clock", func(t *testing.T) {
		fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		q := New(WithClock(func() time.Time { return fixed }))
		q.Add("A", "a", "u1", "")
		q.Add("B", "b", "u1", "")
		q.Add("C", "c", "u1", "")
		assertOrder(t, q, "A", "B", "C")
	})

	t.Run("Vote Rejections", func(t *testing.T) {
		q := New()
		q.Add("A", "a", "u1", "")

		if q.Vote(0, "u1") {
			t.Error("expected submitter's second vote to be rejected")
		}
		if q.Vote(1, "u2") || q.Vote(-1, "u2") {
			t.Error("expected out of range votes to be rejected")
		}
		if !q.Vote(0, "u2") {
			t.Error("expected new voter to be accepted")
		}
		if q.Vote(0, "u2") {
			t.Error("expected duplicate vote to be rejected")
		}

		s, _ := q.Peek()
		if s.Votes != 2 || !s.HasVoted("u1") || !s.HasVoted("u2") {
			t.Errorf("unexpected song state %+v", s)
		}
	})

	t.Run("Add Defaults", func(t *testing.T) {
		q := New()
		s := q.Add("A", "a", "u1", "")
		if s.Votes != 1 || s.Source != models.SourceUser || !s.HasVoted("u1") {
			t.Errorf("unexpected song %+v", s)
		}
	})

	t.Run("Copies Do Not Alias", func(t *testing.T) {
		q := New()
		q.Add("A", "a", "u1", "")
		list := q.List()
		list[0].Voters["intruder"] = struct{}{}
		list[0].Votes = 99

		s, _ := q.Peek()
		if s.Votes != 1 || s.HasVoted("intruder") {
			t.Errorf("expected queue to be unaffected by copies, got %+v", s)
		}
	})

	t.Run("Empty Queue", func(t *testing.T) {
		q := New()
		if _, ok := q.RemoveFirst(); ok {
			t.Error("expected no head")
		}
		if _, ok := q.Peek(); ok {
			t.Error("expected no head")
		}
		if q.Len() != 0 || len(q.Entries()) != 0 {
			t.Error("expected empty queue")
		}
	})

	t.Run("RemoveRef And RemoveWhere", func(t *testing.T) {
		q := New(WithClock(tickingClock()))
		q.Add("A", "a", "sys", models.SourceActive)
		q.Add("B", "b", "sys", models.SourceOverflow)
		q.Add("C", "c", "sys", models.SourceOverflow)
		q.Add("D", "d", "u1", models.SourceUser)

		if _, ok := q.RemoveRef("a"); !ok {
			t.Fatal("expected to remove a")
		}
		if q.Contains("a") {
			t.Error("expected a to be gone")
		}
		if _, ok := q.RemoveRef("zzz"); ok {
			t.Error("expected missing ref to report false")
		}

		n := q.RemoveWhere(func(s Song) bool { return s.Source == models.SourceOverflow && s.TrackRef != "b" })
		if n != 1 {
			t.Errorf("expected 1 removal, got %d", n)
		}
		assertOrder(t, q, "B", "D")
	})

	t.Run("Entries", func(t *testing.T) {
		q := New(WithClock(tickingClock()))
		q.Add("A", "a", "u1", "")
		q.Add("B", "b", "u2", "")
		q.Vote(1, "u1")

		entries := q.Entries()
		if entries[0].Position != 1 || entries[0].Title != "B" || entries[0].Votes != 2 {
			t.Errorf("unexpected first entry %+v", entries[0])
		}
		if fmt.Sprint(entries[0].Voters) != "[u1 u2]" {
			t.Errorf("expected sorted voters, got %v", entries[0].Voters)
		}
	})

	t.Run("Random Votes Keep Invariants", func(t *testing.T) {
		r := rand.New(rand.NewPCG(1, 2))
		q := New(WithClock(tickingClock()))
		for i := range 10 {
			q.Add(fmt.Sprintf("S%d", i), fmt.Sprintf("r%d", i), fmt.Sprintf("u%d", i), "")
		}

		for range 500 {
			q.Vote(r.IntN(12)-1, fmt.Sprintf("u%d", r.IntN(15)))
			assertInvariants(t, q.List())
		}
	})
}
