// Package queue holds the collaborative, vote-ranked song queue.
//
// Songs are ordered by votes (descending), then by when they were added. Every
// song starts with its submitter's vote, and a listener can vote for a song once.
package queue

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
)

// Song is one queued track. Votes always equals len(Voters).
type Song struct {
	Title    string
	TrackRef string
	AddedBy  string
	Source   models.Source
	Votes    int
	Voters   map[string]struct{}
	AddedAt  time.Time

	seq uint64
}

// HasVoted reports whether user has voted for the song.
func (s Song) HasVoted(user string) bool {
	_, ok := s.Voters[user]
	return ok
}

// Entry converts the song into a view at the 1-based position.
func (s Song) Entry(position int) models.QueueEntry {
	voters := slices.Sorted(maps.Keys(s.Voters))
	return models.QueueEntry{
		Position: position,
		Title:    s.Title,
		TrackRef: s.TrackRef,
		AddedBy:  s.AddedBy,
		Source:   s.Source,
		Votes:    s.Votes,
		Voters:   voters,
		AddedAt:  s.AddedAt,
	}
}

func (s Song) clone() Song {
	s.Voters = maps.Clone(s.Voters)
	return s
}

// Queue is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	songs []*Song
	seq   uint64
	now   func() time.Time
}

// Option configures a [Queue].
type Option func(*Queue)

// WithClock replaces [time.Now] for AddedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add appends a song with an implicit vote from user and re-sorts.
func (q *Queue) Add(title, ref, user string, source models.Source) Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	if source == "" {
		source = models.SourceUser
	}
	s := &Song{
		Title:    title,
		TrackRef: ref,
		AddedBy:  user,
		Source:   source,
		Votes:    1,
		Voters:   map[string]struct{}{user: {}},
		AddedAt:  q.now(),
		seq:      q.seq,
	}
	q.songs = append(q.songs, s)
	q.sort()
	return s.clone()
}

// Vote adds user's vote to the song at the 0-based index. It returns false when the
// index is out of range or the user already voted for that song.
func (q *Queue) Vote(index int, user string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.songs) {
		return false
	}
	s := q.songs[index]
	if _, ok := s.Voters[user]; ok {
		return false
	}
	s.Voters[user] = struct{}{}
	s.Votes = len(s.Voters)
	q.sort()
	return true
}

// RemoveFirst pops the head.
func (q *Queue) RemoveFirst() (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return Song{}, false
	}
	head := q.songs[0]
	q.songs = slices.Delete(q.songs, 0, 1)
	return head.clone(), true
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return Song{}, false
	}
	return q.songs[0].clone(), true
}

// List returns copies of every song in ranked order.
func (q *Queue) List() []Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Song, len(q.songs))
	for i, s := range q.songs {
		out[i] = s.clone()
	}
	return out
}

// Entries returns the ranked view of the queue.
func (q *Queue) Entries() []models.QueueEntry {
	songs := q.List()
	out := make([]models.QueueEntry, len(songs))
	for i, s := range songs {
		out[i] = s.Entry(i + 1)
	}
	return out
}

// Len returns the number of queued songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// Contains reports whether ref is queued.
func (q *Queue) Contains(ref string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.ContainsFunc(q.songs, func(s *Song) bool { return s.TrackRef == ref })
}

// RemoveRef removes the highest ranked song with ref.
func (q *Queue) RemoveRef(ref string) (Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := slices.IndexFunc(q.songs, func(s *Song) bool { return s.TrackRef == ref })
	if i < 0 {
		return Song{}, false
	}
	s := q.songs[i]
	q.songs = slices.Delete(q.songs, i, i+1)
	return s.clone(), true
}

// RemoveWhere removes every song for which drop returns true and reports how many were removed.
func (q *Queue) RemoveWhere(drop func(Song) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.songs)
	q.songs = slices.DeleteFunc(q.songs, func(s *Song) bool { return drop(*s) })
	return before - len(q.songs)
}

func (q *Queue) sort() {
	slices.SortStableFunc(q.songs, func(a, b *Song) int {
		if a.Votes != b.Votes {
			return b.Votes - a.Votes
		}
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
}
