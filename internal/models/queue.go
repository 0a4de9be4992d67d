package models

import "time"

// Source labels where a collaborative queue entry came from.
type Source string

const (
	SourceUser     Source = "user"
	SourceActive   Source = "active"
	SourceOverflow Source = "overflow"
)

// Seeded reports whether the entry was added by the system rather than a listener.
func (s Source) Seeded() bool {
	return s == SourceActive || s == SourceOverflow
}

// QueueEntry is the read-only view of a queued song handed to display layers.
// Position is 1-based.
type QueueEntry struct {
	Position int       `json:"position"`
	Title    string    `json:"title"`
	TrackRef string    `json:"track_ref"`
	AddedBy  string    `json:"added_by"`
	Source   Source    `json:"source"`
	Votes    int       `json:"votes"`
	Voters   []string  `json:"voters"`
	AddedAt  time.Time `json:"added_at"`
}

// AddSongRequest is the body accepted by the control server's add endpoint.
type AddSongRequest struct {
	Title    string `json:"title"`
	Ref      string `json:"ref,omitempty"`
	UserID   string `json:"user_id"`
	Priority bool   `json:"priority,omitempty"`
}

// AddResult reports the outcome of adding a song. Error holds a user-facing message.
type AddResult struct {
	Success     bool   `json:"success"`
	Title       string `json:"title,omitempty"`
	TrackRef    string `json:"track_ref,omitempty"`
	ArchiveName string `json:"archive_name,omitempty"`
	ActiveName  string `json:"active_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VoteRequest casts a vote for the song at the 1-based Position.
type VoteRequest struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
}

// VoteResult reports whether a vote was counted.
type VoteResult struct {
	Accepted bool `json:"accepted"`
}

// SkipRequest retires Count songs.
type SkipRequest struct {
	Count int `json:"count"`
}

// SkipResult lists the titles retired by a skip.
type SkipResult struct {
	Retired []string `json:"retired"`
}

// NowPlaying is the control server's view of the current track.
type NowPlaying struct {
	Playing  bool      `json:"playing"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}
