package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track is a single track as reported by the remote service. ID is the 22 character track reference.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	DurationMS int      `json:"duration_ms"`
}

// Artist joins the artist names for display.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Label renders "Title - Artist", or just the title when no artist is known.
func (t Track) Label() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Title, t.Artist())
}

// TrackPage is one page of the user's saved library.
type TrackPage struct {
	Tracks []Track
	Offset int
	Total  int
}

// Playback is the remote device's current state. Track is nil when nothing is loaded.
type Playback struct {
	Track      *Track `json:"track,omitempty"`
	ProgressMS int    `json:"progress_ms"`
	IsPlaying  bool   `json:"is_playing"`
	DeviceID   string `json:"device_id,omitempty"`
	ContextURI string `json:"context_uri,omitempty"`
}

// Device is a playback target.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsActive     bool   `json:"is_active"`
	IsRestricted bool   `json:"is_restricted"`
}

// Playlist represents a remote playlist.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URI         string `json:"uri"`
}

// PlaylistOptions configures a playlist on creation.
type PlaylistOptions struct {
	Description string
	Public      bool
}

// PlayOptions starts playback of ContextURI on DeviceID, optionally at OffsetURI.
type PlayOptions struct {
	DeviceID   string
	ContextURI string
	OffsetURI  string
}

// Snapshot is the last observed remote playback, compared by TrackRef only.
type Snapshot struct {
	TrackRef   string   `json:"track_ref"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	DurationMS int      `json:"duration_ms"`
	ProgressMS int      `json:"progress_ms"`
	ContextURI string   `json:"context_uri,omitempty"`
}

// SnapshotOf converts a playing [Playback] into a [Snapshot]. It returns nil when no track is loaded.
func SnapshotOf(p *Playback) *Snapshot {
	if p == nil || p.Track == nil || p.Track.ID == "" {
		return nil
	}
	return &Snapshot{
		TrackRef:   p.Track.ID,
		Name:       p.Track.Title,
		Artists:    append([]string(nil), p.Track.Artists...),
		DurationMS: p.Track.DurationMS,
		ProgressMS: p.ProgressMS,
		ContextURI: p.ContextURI,
	}
}

// Remaining is the predicted time until the snapshot's track ends.
func (s Snapshot) Remaining() time.Duration {
	left := s.DurationMS - s.ProgressMS
	if left < 0 {
		left = 0
	}
	return time.Duration(left) * time.Millisecond
}

// CatalogTrack is a [Track] persisted in the local catalog.
type CatalogTrack struct {
	TrackID      string
	Ref          string
	Title        string
	Artists      []string
	DurationMS   int
	TrackCreated time.Time
	TrackUpdated time.Time
}

func (c *CatalogTrack) ID() string           { return c.TrackID }
func (c *CatalogTrack) CreatedAt() time.Time { return c.TrackCreated }
func (c *CatalogTrack) UpdatedAt() time.Time { return c.TrackUpdated }

// Validate requires a reference and a title.
func (c *CatalogTrack) Validate() error {
	if c.Ref == "" {
		return fmt.Errorf("track ref is required")
	}
	if c.Title == "" {
		return fmt.Errorf("track title is required")
	}
	return nil
}

// Track converts the row back into a DTO.
func (c *CatalogTrack) Track() Track {
	return Track{ID: c.Ref, Title: c.Title, Artists: c.Artists, DurationMS: c.DurationMS}
}
