package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestTrackRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		track := &models.CatalogTrack{Ref: "4uLU6hMCjMI75M1A2tKUQC", Title: "Never Gonna Give You Up", Artists: []string{"Rick Astley"}, DurationMS: 213000}

		if err := repo.Create(track); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if track.TrackID == "" {
			t.Fatal("expected generated ID")
		}

		got, err := repo.GetByRef(track.Ref)
		if err != nil {
			t.Fatalf("GetByRef failed: %v", err)
		}
		if got.TrackID != track.TrackID {
			t.Errorf("expected ID %s, got %s", track.TrackID, got.TrackID)
		}
		if got.Title != track.Title || got.Ref != track.Ref || got.DurationMS != 213000 {
			t.Errorf("expected %+v, got %+v", track, got)
		}
		if len(got.Artists) != 1 || got.Artists[0] != "Rick Astley" {
			t.Errorf("expected artists [Rick Astley], got %v", got.Artists)
		}
	})

	t.Run("Create rejects invalid rows", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		err := repo.Create(&models.CatalogTrack{Title: "No Ref"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Create rejects duplicate refs", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		if err := repo.Create(&models.CatalogTrack{Ref: "dup", Title: "One"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := repo.Create(&models.CatalogTrack{Ref: "dup", Title: "Two"}); err == nil {
			t.Error("expected unique constraint error")
		}
	})

	t.Run("GetByRef", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		if err := repo.Create(&models.CatalogTrack{Ref: "abc", Title: "Song"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.GetByRef("abc")
		if err != nil {
			t.Fatalf("GetByRef failed: %v", err)
		}
		if got.Title != "Song" {
			t.Errorf("expected Song, got %s", got.Title)
		}

		if _, err := repo.GetByRef("missing"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if _, err := repo.GetByRef("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		track := &models.CatalogTrack{Ref: "abc", Title: "Old"}
		if err := repo.Create(track); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		track.Title = "New"
		track.Artists = []string{"A", "B"}
		if err := repo.Update(track); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := repo.GetByRef(track.Ref)
		if got.Title != "New" || len(got.Artists) != 2 {
			t.Errorf("expected updated row, got %+v", got)
		}

		missing := &models.CatalogTrack{TrackID: "nope", Ref: "x", Title: "x"}
		if err := repo.Update(missing); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		track := &models.CatalogTrack{Ref: "abc", Title: "Song"}
		if err := repo.Create(track); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := repo.Delete(track.TrackID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.GetByRef(track.Ref); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if err := repo.Delete(track.TrackID); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound on second delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		for _, ref := range []string{"a", "b", "c"} {
			if err := repo.Create(&models.CatalogTrack{Ref: ref, Title: "Title " + ref}); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(all))
		}
		if all[0].Ref != "a" || all[2].Ref != "c" {
			t.Errorf("expected insertion order, got %s..%s", all[0].Ref, all[2].Ref)
		}

		filtered, err := repo.List(map[string]any{"ref": "b"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(filtered) != 1 || filtered[0].Title != "Title b" {
			t.Errorf("expected only b, got %+v", filtered)
		}
	})
}

func TestTrackCatalog(t *testing.T) {
	t.Run("Remember and Lookup", func(t *testing.T) {
		catalog := NewTrackCatalog(NewTrackRepository(setupTestDB(t)))
		err := catalog.Remember(
			models.Track{ID: "one", Title: "First", Artists: []string{"X"}, DurationMS: 1000},
			models.Track{ID: "two", Title: "Second"},
		)
		if err != nil {
			t.Fatalf("Remember failed: %v", err)
		}

		got, ok := catalog.Lookup("one")
		if !ok {
			t.Fatal("expected track to be remembered")
		}
		if got.Title != "First" || got.Artist() != "X" || got.DurationMS != 1000 {
			t.Errorf("unexpected track %+v", got)
		}

		if _, ok := catalog.Lookup("three"); ok {
			t.Error("expected lookup miss")
		}
	})

	t.Run("Remember refreshes existing rows", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		catalog := NewTrackCatalog(repo)

		_ = catalog.Remember(models.Track{ID: "one", Title: "Draft"})
		if err := catalog.Remember(models.Track{ID: "one", Title: "Final"}); err != nil {
			t.Fatalf("Remember failed: %v", err)
		}

		rows, _ := repo.List(nil)
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		if rows[0].Title != "Final" {
			t.Errorf("expected Final, got %s", rows[0].Title)
		}
	})

	t.Run("Remember skips incomplete tracks", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		catalog := NewTrackCatalog(repo)

		if err := catalog.Remember(models.Track{ID: "x"}, models.Track{Title: "no id"}); err != nil {
			t.Fatalf("Remember failed: %v", err)
		}
		rows, _ := repo.List(nil)
		if len(rows) != 0 {
			t.Errorf("expected no rows, got %d", len(rows))
		}
	})

	t.Run("Tracks", func(t *testing.T) {
		catalog := NewTrackCatalog(NewTrackRepository(setupTestDB(t)))
		_ = catalog.Remember(
			models.Track{ID: "one", Title: "Intro"},
			models.Track{ID: "two", Title: "Outro"},
			models.Track{ID: "three", Title: "Intro"},
		)

		all, err := catalog.Tracks("")
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		if len(all) != 3 || all[0].ID != "one" || all[2].ID != "three" {
			t.Errorf("expected 3 tracks in order, got %+v", all)
		}

		intros, err := catalog.Tracks("Intro")
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		if len(intros) != 2 {
			t.Errorf("expected 2 intros, got %+v", intros)
		}
	})

	t.Run("Forget", func(t *testing.T) {
		catalog := NewTrackCatalog(NewTrackRepository(setupTestDB(t)))
		_ = catalog.Remember(models.Track{ID: "one", Title: "First"})

		forgot, err := catalog.Forget("one")
		if err != nil || !forgot {
			t.Fatalf("expected one to be forgotten, got %v, %v", forgot, err)
		}
		if _, ok := catalog.Lookup("one"); ok {
			t.Error("expected lookup miss after forget")
		}

		forgot, err = catalog.Forget("one")
		if err != nil || forgot {
			t.Errorf("expected nothing to forget, got %v, %v", forgot, err)
		}
	})
}
