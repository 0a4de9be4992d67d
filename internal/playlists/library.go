package playlists

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/tasks"
	"golang.org/x/sync/errgroup"
)

// LikedSongs returns up to LibraryLimit tracks from the user's saved library.
//
// The result is cached for LibraryTTL. Pages after the first are requested concurrently.
// When a refetch fails the last good result is returned instead of the error.
func (r *Reconciler) LikedSongs(ctx context.Context) ([]models.Track, error) {
	r.libMu.Lock()
	defer r.libMu.Unlock()

	now := r.opts.Now()
	if r.library != nil && now.Sub(r.libAt) < r.opts.LibraryTTL {
		return slices.Clone(r.library), nil
	}

	tracks, err := r.fetchLibrary(ctx)
	if err != nil {
		if r.library != nil {
			r.logger.Warn("library fetch failed, using cached library", "error", err, "cached", len(r.library))
			return slices.Clone(r.library), nil
		}
		return nil, err
	}

	r.library, r.libAt = tracks, now
	r.remember(tracks...)
	r.logger.Debug("fetched liked songs", "count", len(tracks))
	return slices.Clone(tracks), nil
}

func (r *Reconciler) fetchLibrary(ctx context.Context) ([]models.Track, error) {
	size := min(r.opts.PageSize, r.opts.LibraryLimit)
	first, err := r.savedPage(ctx, 0, size)
	if err != nil {
		return nil, err
	}

	limit := min(first.Total, r.opts.LibraryLimit)
	var offsets []int
	for off := size; off < limit; off += size {
		offsets = append(offsets, off)
	}

	pages := make([][]models.Track, len(offsets))
	g, gctx := errgroup.WithContext(ctx)
	for i, off := range offsets {
		g.Go(func() error {
			page, err := r.savedPage(gctx, off, min(size, limit-off))
			if err != nil {
				return err
			}
			pages[i] = page.Tracks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, limit)
	out := make([]models.Track, 0, limit)
	for _, page := range append([][]models.Track{first.Tracks}, pages...) {
		for _, t := range page {
			if !services.ValidTrackID(t.ID) {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	if len(out) > r.opts.LibraryLimit {
		out = out[:r.opts.LibraryLimit]
	}
	return out, nil
}

func (r *Reconciler) savedPage(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	page, err := tasks.Do(ctx, r.ops, "fetch liked songs page", func(ctx context.Context) (*models.TrackPage, error) {
		return r.remote.SavedTracks(ctx, offset, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch liked songs at %d: %w", offset, err)
	}
	if page == nil {
		return &models.TrackPage{Offset: offset}, nil
	}
	return page, nil
}

// Sample draws up to n distinct library tracks uniformly at random, skipping refs in exclude.
func (r *Reconciler) Sample(ctx context.Context, n int, exclude []string) ([]models.Track, error) {
	if n <= 0 {
		return nil, nil
	}
	library, err := r.LikedSongs(ctx)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, ref := range exclude {
		skip[ref] = struct{}{}
	}
	candidates := slices.DeleteFunc(library, func(t models.Track) bool {
		_, ok := skip[t.ID]
		return ok
	})

	r.randMu.Lock()
	r.opts.Rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	r.randMu.Unlock()

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}
