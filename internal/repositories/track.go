package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

const trackColumns = "id, track_ref, title, artists, duration_ms, created_at, updated_at"

// TrackRepository implements models.Repository[*models.CatalogTrack].
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.CatalogTrack] with a generated ID.
func (r *TrackRepository) Create(track *models.CatalogTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	artists, err := json.Marshal(track.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	now := time.Now().UTC()
	track.TrackID = shared.GenerateID()
	track.TrackCreated, track.TrackUpdated = now, now

	_, err = r.db.Exec(
		`INSERT INTO tracks (`+trackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		track.TrackID, track.Ref, track.Title, string(artists), track.DurationMS, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// GetByRef retrieves a track by its remote reference.
func (r *TrackRepository) GetByRef(ref string) (*models.CatalogTrack, error) {
	return r.scan(r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE track_ref = ?`, ref))
}

// Update rewrites the metadata of an existing track.
func (r *TrackRepository) Update(track *models.CatalogTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	artists, err := json.Marshal(track.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(
		`UPDATE tracks SET title = ?, artists = ?, duration_ms = ?, updated_at = ? WHERE id = ?`,
		track.Title, string(artists), track.DurationMS, now, track.TrackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	if err := expectOne(result, track.TrackID); err != nil {
		return err
	}
	track.TrackUpdated = now
	return nil
}

// Delete removes a track by row ID.
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectOne(result, id)
}

// List retrieves tracks matching criteria ("ref" or "title", both exact) in insertion order.
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CatalogTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	var args []any

	if ref, ok := criteria["ref"].(string); ok && ref != "" {
		query += " AND track_ref = ?"
		args = append(args, ref)
	}
	if title, ok := criteria["title"].(string); ok && title != "" {
		query += " AND title = ?"
		args = append(args, title)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CatalogTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *TrackRepository) scan(row scanner) (*models.CatalogTrack, error) {
	var (
		track   models.CatalogTrack
		artists string
	)
	err := row.Scan(&track.TrackID, &track.Ref, &track.Title, &artists, &track.DurationMS, &track.TrackCreated, &track.TrackUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	if artists != "" {
		if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
			return nil, fmt.Errorf("failed to decode artists: %w", err)
		}
	}
	return &track, nil
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.CatalogTrack] = (*TrackRepository)(nil)
