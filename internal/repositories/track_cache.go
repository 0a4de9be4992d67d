package repositories

import (
	"errors"
	"fmt"
	"slices"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// TrackCatalog remembers track metadata by reference.
type TrackCatalog struct {
	repo *TrackRepository
}

// NewTrackCatalog creates a catalog backed by repo.
func NewTrackCatalog(repo *TrackRepository) *TrackCatalog {
	return &TrackCatalog{repo: repo}
}

// Remember inserts or refreshes each track. Tracks without a reference or title are skipped.
func (c *TrackCatalog) Remember(tracks ...models.Track) error {
	var errs []error
	for _, t := range tracks {
		if t.ID == "" || t.Title == "" {
			continue
		}
		if err := c.upsert(t); err != nil {
			errs = append(errs, fmt.Errorf("failed to cache track %s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *TrackCatalog) upsert(t models.Track) error {
	existing, err := c.repo.GetByRef(t.ID)
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return c.repo.Create(&models.CatalogTrack{Ref: t.ID, Title: t.Title, Artists: t.Artists, DurationMS: t.DurationMS})
	case err != nil:
		return err
	}

	if existing.Title == t.Title && existing.DurationMS == t.DurationMS && slices.Equal(existing.Artists, t.Artists) {
		return nil
	}
	existing.Title, existing.Artists, existing.DurationMS = t.Title, t.Artists, t.DurationMS
	return c.repo.Update(existing)
}

// Lookup returns the remembered track for ref.
func (c *TrackCatalog) Lookup(ref string) (models.Track, bool) {
	row, err := c.repo.GetByRef(ref)
	if err != nil {
		return models.Track{}, false
	}
	return row.Track(), true
}

// Tracks lists remembered tracks in the order they were first seen, optionally only
// those titled title.
func (c *TrackCatalog) Tracks(title string) ([]models.Track, error) {
	rows, err := c.repo.List(map[string]any{"title": title})
	if err != nil {
		return nil, err
	}
	out := make([]models.Track, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Track())
	}
	return out, nil
}

// Forget drops ref from the catalog and reports whether it was remembered.
func (c *TrackCatalog) Forget(ref string) (bool, error) {
	rows, err := c.repo.List(map[string]any{"ref": ref})
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if err := c.repo.Delete(row.TrackID); err != nil {
			return false, fmt.Errorf("failed to forget %s: %w", ref, err)
		}
	}
	return len(rows) > 0, nil
}
