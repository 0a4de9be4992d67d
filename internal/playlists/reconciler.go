package playlists

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/services"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/tasks"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOverflowSize = 5
	DefaultCacheTTL     = 10 * time.Second
	DefaultLibraryTTL   = 5 * time.Minute
	DefaultLibraryLimit = 200
	DefaultPageSize     = 50

	searchLimit = 10
)

// Catalog remembers track metadata by reference.
type Catalog interface {
	Remember(tracks ...models.Track) error
	Lookup(ref string) (models.Track, bool)
}

// Options configures a [Reconciler]. Zero values fall back to the package defaults.
type Options struct {
	ActiveName   string
	OverflowName string
	ArchiveName  string // empty disables the archive
	Public       bool

	OverflowSize int
	CacheTTL     time.Duration
	LibraryTTL   time.Duration
	LibraryLimit int
	PageSize     int

	SearchAttempts int
	SearchBackoff  time.Duration

	Catalog Catalog
	Logger  *log.Logger
	Rand    *rand.Rand
	Now     func() time.Time
}

// OptionsFromConfig builds reconciler options from the [playlists] and [operations] config sections.
func OptionsFromConfig(p shared.PlaylistsConfig, o shared.OperationsConfig) Options {
	return Options{
		ActiveName:     p.Active,
		OverflowName:   p.Overflow,
		ArchiveName:    p.Archive,
		Public:         p.Public,
		OverflowSize:   p.OverflowSize,
		CacheTTL:       p.CacheTTL.Duration,
		LibraryTTL:     p.LibraryTTL.Duration,
		LibraryLimit:   p.LibraryLimit,
		SearchAttempts: o.SearchAttempts,
		SearchBackoff:  o.SearchBackoff.Duration,
	}
}

// Cache is a copy of the reconciler's view of the managed playlists.
type Cache struct {
	ActiveID    string
	OverflowID  string
	Active      []string
	Overflow    []string
	RefreshedAt time.Time
}

// ActiveURI is the playback context of the active playlist.
func (c Cache) ActiveURI() string { return services.PlaylistURI(c.ActiveID) }

// OverflowURI is the playback context of the overflow playlist.
func (c Cache) OverflowURI() string { return services.PlaylistURI(c.OverflowID) }

// InActive reports whether ref is a cached member of the active playlist.
func (c Cache) InActive(ref string) bool { return slices.Contains(c.Active, ref) }

// InOverflow reports whether ref is a cached member of the overflow playlist.
func (c Cache) InOverflow(ref string) bool { return slices.Contains(c.Overflow, ref) }

// Managed reports whether contextURI is one of the two playback playlists.
func (c Cache) Managed(contextURI string) bool {
	id := services.PlaylistIDFromURI(contextURI)
	return id != "" && (id == c.ActiveID || id == c.OverflowID)
}

func (c Cache) clone() Cache {
	c.Active = slices.Clone(c.Active)
	c.Overflow = slices.Clone(c.Overflow)
	return c
}

// Reconciler owns the active, overflow and archive playlists.
type Reconciler struct {
	remote services.Remote
	ops    *tasks.Queue
	opts   Options
	logger *log.Logger

	resolveMu sync.Mutex
	ids       map[string]string

	mu    sync.Mutex
	cache Cache
	fresh bool
	meta  map[string]models.Track

	libMu   sync.Mutex // held for the whole library fetch
	library []models.Track
	libAt   time.Time

	randMu sync.Mutex
}

// New creates a reconciler that submits every remote call to ops.
func New(remote services.Remote, ops *tasks.Queue, opts Options) *Reconciler {
	if opts.ActiveName == "" {
		opts.ActiveName = "crowdq: up next"
	}
	if opts.OverflowName == "" {
		opts.OverflowName = "crowdq: overflow"
	}
	if opts.OverflowSize <= 0 {
		opts.OverflowSize = DefaultOverflowSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.LibraryTTL <= 0 {
		opts.LibraryTTL = DefaultLibraryTTL
	}
	if opts.LibraryLimit <= 0 {
		opts.LibraryLimit = DefaultLibraryLimit
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SearchAttempts <= 0 {
		opts.SearchAttempts = 3
	}
	if opts.SearchBackoff <= 0 {
		opts.SearchBackoff = 500 * time.Millisecond
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Reconciler{
		remote: remote,
		ops:    ops,
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "playlists"),
		ids:    make(map[string]string),
		meta:   make(map[string]models.Track),
	}
}

// ActiveName returns the configured name of the active playlist.
func (r *Reconciler) ActiveName() string { return r.opts.ActiveName }

// OverflowName returns the configured name of the overflow playlist.
func (r *Reconciler) OverflowName() string { return r.opts.OverflowName }

// ArchiveName returns the configured name of the archive playlist, or "".
func (r *Reconciler) ArchiveName() string { return r.opts.ArchiveName }

// OverflowSize is the configured overflow target.
func (r *Reconciler) OverflowSize() int { return r.opts.OverflowSize }

// GetOrCreateActive returns the ID of the active playlist, creating it if needed.
func (r *Reconciler) GetOrCreateActive(ctx context.Context) (string, error) {
	return r.getOrCreate(ctx, r.opts.ActiveName, "Requests from the room, in vote order")
}

// GetOrCreateOverflow returns the ID of the overflow playlist, creating it if needed.
func (r *Reconciler) GetOrCreateOverflow(ctx context.Context) (string, error) {
	return r.getOrCreate(ctx, r.opts.OverflowName, "Picks from the library while the request list is empty")
}

// GetOrCreateArchive returns the ID of the archive playlist. It returns "" when the archive is disabled.
func (r *Reconciler) GetOrCreateArchive(ctx context.Context) (string, error) {
	if r.opts.ArchiveName == "" {
		return "", nil
	}
	return r.getOrCreate(ctx, r.opts.ArchiveName, "Every song requested")
}

func (r *Reconciler) getOrCreate(ctx context.Context, name, description string) (string, error) {
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	if id, ok := r.ids[name]; ok {
		return id, nil
	}

	all, err := tasks.Do(ctx, r.ops, "list playlists", r.remote.UserPlaylists)
	if err != nil {
		return "", fmt.Errorf("failed to list playlists: %w", err)
	}
	for _, p := range all {
		if p.Name == name {
			r.ids[name] = p.ID
			r.logger.Debug("found playlist", "name", name, "id", p.ID, "tracks", p.TrackCount)
			return p.ID, nil
		}
	}

	created, err := tasks.Do(ctx, r.ops, "create playlist", func(ctx context.Context) (*models.Playlist, error) {
		return r.remote.CreatePlaylist(ctx, name, models.PlaylistOptions{Description: description, Public: r.opts.Public})
	})
	if err != nil {
		return "", fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	if created == nil || created.ID == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}

	r.ids[name] = created.ID
	r.logger.Info("created playlist", "name", name, "id", created.ID)
	return created.ID, nil
}

// Invalidate drops the cached playlist membership.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.fresh = false
	r.mu.Unlock()
}

// Snapshot returns the cached membership of the active and overflow playlists,
// refetching it when the cache is older than the TTL, invalidated, or force is set.
func (r *Reconciler) Snapshot(ctx context.Context, force bool) (Cache, error) {
	r.mu.Lock()
	if !force && r.fresh && r.opts.Now().Sub(r.cache.RefreshedAt) < r.opts.CacheTTL {
		c := r.cache.clone()
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	activeID, err := r.GetOrCreateActive(ctx)
	if err != nil {
		return Cache{}, err
	}
	overflowID, err := r.GetOrCreateOverflow(ctx)
	if err != nil {
		return Cache{}, err
	}

	active, err := r.playlistTracks(ctx, activeID)
	if err != nil {
		return Cache{}, err
	}
	overflow, err := r.playlistTracks(ctx, overflowID)
	if err != nil {
		return Cache{}, err
	}

	next := Cache{
		ActiveID:    activeID,
		OverflowID:  overflowID,
		Active:      refsOf(active),
		Overflow:    refsOf(overflow),
		RefreshedAt: r.opts.Now(),
	}

	r.mu.Lock()
	r.cache = next
	r.fresh = true
	r.rememberLocked(active...)
	r.rememberLocked(overflow...)
	r.mu.Unlock()

	r.logger.Debug("refreshed playlist cache", "active", len(next.Active), "overflow", len(next.Overflow))
	return next.clone(), nil
}

func (r *Reconciler) playlistTracks(ctx context.Context, id string) ([]models.Track, error) {
	tracks, err := tasks.Do(ctx, r.ops, "get playlist tracks", func(ctx context.Context) ([]models.Track, error) {
		return r.remote.PlaylistTracks(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", id, err)
	}
	return tracks, nil
}

func (r *Reconciler) rememberLocked(tracks ...models.Track) {
	for _, t := range tracks {
		if t.ID != "" && t.Title != "" {
			r.meta[t.ID] = t
		}
	}
	if r.opts.Catalog == nil || len(tracks) == 0 {
		return
	}
	if err := r.opts.Catalog.Remember(tracks...); err != nil {
		r.logger.Warn("failed to update track catalog", "error", err)
	}
}

func (r *Reconciler) remember(tracks ...models.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rememberLocked(tracks...)
}

// TrackInfo returns metadata for ref from memory, the catalog, or the remote service.
func (r *Reconciler) TrackInfo(ctx context.Context, ref string) (models.Track, error) {
	r.mu.Lock()
	t, ok := r.meta[ref]
	r.mu.Unlock()
	if ok {
		return t, nil
	}

	if r.opts.Catalog != nil {
		if t, ok := r.opts.Catalog.Lookup(ref); ok {
			return t, nil
		}
	}

	got, err := tasks.Do(ctx, r.ops, "get track", func(ctx context.Context) (*models.Track, error) {
		return r.remote.Track(ctx, ref)
	})
	if err != nil {
		return models.Track{}, err
	}
	if got == nil {
		return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, ref)
	}
	r.remember(*got)
	return *got, nil
}

// ResolveTrack turns a request into a track. A non-empty ref must be a valid track
// reference and is rejected before any remote call otherwise. Without a ref, title is
// searched and the first result with a valid ID wins.
func (r *Reconciler) ResolveTrack(ctx context.Context, title, ref string) (models.Track, error) {
	if ref != "" {
		id, err := services.NormalizeTrackRef(ref)
		if err != nil {
			return models.Track{}, err
		}
		t, err := r.TrackInfo(ctx, id)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return models.Track{}, err
			}
			return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
		}
		if title != "" && t.Title == "" {
			t.Title = title
		}
		return t, nil
	}

	if title == "" {
		return models.Track{}, fmt.Errorf("%w: a title or track link is required", shared.ErrInvalidInput)
	}

	results, err := services.Retry(ctx, r.opts.SearchAttempts, r.opts.SearchBackoff, func(ctx context.Context) ([]models.Track, error) {
		return tasks.Do(ctx, r.ops, "search tracks", func(ctx context.Context) ([]models.Track, error) {
			return r.remote.SearchTracks(ctx, title, searchLimit)
		})
	})
	if err != nil {
		return models.Track{}, fmt.Errorf("search for %q failed: %w", title, err)
	}
	for _, t := range results {
		if services.ValidTrackID(t.ID) {
			r.remember(t)
			return t, nil
		}
	}
	return models.Track{}, fmt.Errorf("%w: %q", shared.ErrTrackNotFound, title)
}

// AddToPlaylists resolves a request, appends it to the archive and adds it to the
// active playlist unless it is already a cached member. Priority requests go to the
// front of the active playlist and jump the operation queue. The overflow size is
// checked afterwards either way.
func (r *Reconciler) AddToPlaylists(ctx context.Context, title, ref string, priority bool) (models.AddResult, error) {
	var opts []tasks.Option
	if priority {
		opts = append(opts, tasks.WithPriority())
	}

	track, err := r.ResolveTrack(ctx, title, ref)
	if err != nil {
		return models.AddResult{Error: shared.UserMessage(err)}, err
	}
	result := models.AddResult{Success: true, Title: track.Label(), TrackRef: track.ID}

	archiveID, err := r.GetOrCreateArchive(ctx)
	if err != nil {
		r.logger.Warn("archive playlist unavailable", "error", err)
	} else if archiveID != "" {
		_, err := tasks.Do(ctx, r.ops, "add track to archive", func(ctx context.Context) (any, error) {
			return nil, r.remote.AddTracksToPlaylist(ctx, archiveID, -1, track.ID)
		}, opts...)
		if err != nil {
			r.logger.Warn("failed to archive track", "ref", track.ID, "error", err)
		} else {
			result.ArchiveName = r.opts.ArchiveName
		}
	}

	cache, err := r.Snapshot(ctx, false)
	if err != nil {
		return models.AddResult{Error: shared.UserMessage(err)}, err
	}

	if cache.InActive(track.ID) {
		r.logger.Debug("track already in active playlist", "ref", track.ID)
		result.ActiveName = r.opts.ActiveName
	} else {
		position := -1
		if priority {
			position = 0
		}
		_, err := tasks.Do(ctx, r.ops, "add track to active playlist", func(ctx context.Context) (any, error) {
			return nil, r.remote.AddTracksToPlaylist(ctx, cache.ActiveID, position, track.ID)
		}, opts...)
		r.Invalidate()
		if err != nil {
			return models.AddResult{Error: shared.UserMessage(err)}, err
		}
		result.ActiveName = r.opts.ActiveName
		r.logger.Info("added track", "ref", track.ID, "title", track.Title, "priority", priority)
	}

	if err := r.EnsureOverflowHasFixedSize(ctx, 0); err != nil {
		r.logger.Warn("overflow check failed", "error", err)
	}
	return result, nil
}

// RemoveFromActive removes ref from the active playlist and reports whether it was a member.
func (r *Reconciler) RemoveFromActive(ctx context.Context, ref string) (bool, error) {
	cache, err := r.Snapshot(ctx, true)
	if err != nil {
		return false, err
	}
	if !cache.InActive(ref) {
		return false, nil
	}
	if err := r.removeFrom(ctx, cache.ActiveID, "remove track from active playlist", ref); err != nil {
		return false, err
	}
	return true, nil
}

// PromoteInActive moves ref to the front of the active playlist, adding it if absent.
func (r *Reconciler) PromoteInActive(ctx context.Context, ref string) error {
	cache, err := r.Snapshot(ctx, false)
	if err != nil {
		return err
	}
	if len(cache.Active) > 0 && cache.Active[0] == ref {
		return nil
	}
	if cache.InActive(ref) {
		if err := r.removeFrom(ctx, cache.ActiveID, "remove track from active playlist", ref); err != nil {
			return err
		}
	}
	_, err = tasks.Do(ctx, r.ops, "add track to active playlist", func(ctx context.Context) (any, error) {
		return nil, r.remote.AddTracksToPlaylist(ctx, cache.ActiveID, 0, ref)
	}, tasks.WithPriority())
	r.Invalidate()
	return err
}

// HandleTrackRemoval retires ref from both playback playlists. When ref was in the
// overflow playlist, removalCount replacements are drawn from the library and added
// concurrently with the removals.
func (r *Reconciler) HandleTrackRemoval(ctx context.Context, ref string, removalCount int) error {
	cache, err := r.Snapshot(ctx, true)
	if err != nil {
		return err
	}

	var g errgroup.Group
	if cache.InActive(ref) {
		g.Go(func() error {
			return r.removeFrom(ctx, cache.ActiveID, "remove track from active playlist", ref)
		})
	}
	if cache.InOverflow(ref) {
		g.Go(func() error {
			return r.removeFrom(ctx, cache.OverflowID, "remove track from overflow playlist", ref)
		})
		if removalCount > 0 {
			exclude := append(slices.Clone(cache.Overflow), cache.Active...)
			g.Go(func() error {
				return r.backfill(ctx, cache.OverflowID, removalCount, exclude)
			})
		}
	}
	err = g.Wait()
	r.Invalidate()

	if err != nil {
		return fmt.Errorf("failed to retire %s: %w", ref, err)
	}
	r.logger.Debug("retired track", "ref", ref, "active", cache.InActive(ref), "overflow", cache.InOverflow(ref))
	return nil
}

// EnsureOverflowHasFixedSize brings the overflow playlist to target tracks, or the
// configured size when target is not positive. An empty playlist is repopulated from a
// library sample, a short one gets the shortfall, a long one loses its oldest tracks.
func (r *Reconciler) EnsureOverflowHasFixedSize(ctx context.Context, target int) error {
	if target <= 0 {
		target = r.opts.OverflowSize
	}

	cache, err := r.Snapshot(ctx, true)
	if err != nil {
		return err
	}

	count := len(cache.Overflow)
	switch {
	case count == target:
		return nil
	case count == 0:
		r.logger.Info("repopulating overflow playlist", "target", target)
		err = r.backfill(ctx, cache.OverflowID, target, cache.Active)
	case count < target:
		r.logger.Debug("filling overflow playlist", "count", count, "target", target)
		err = r.backfill(ctx, cache.OverflowID, target-count, append(slices.Clone(cache.Overflow), cache.Active...))
	default:
		excess, kept := trimOldest(cache.Overflow, target)
		r.logger.Debug("trimming overflow playlist", "count", count, "target", target, "excess", len(excess), "kept", kept)
		err = r.removeFrom(ctx, cache.OverflowID, "trim overflow playlist", excess...)
		if err == nil && kept < target {
			err = r.backfill(ctx, cache.OverflowID, target-kept, append(slices.Clone(cache.Overflow), cache.Active...))
		}
	}
	r.Invalidate()
	return err
}

// trimOldest picks the oldest refs to drop so at most target tracks remain. Removal by
// reference drops every copy, so kept falls below target when a dropped ref is duplicated.
func trimOldest(overflow []string, target int) (excess []string, kept int) {
	kept = len(overflow)
	for _, ref := range overflow {
		if kept <= target {
			break
		}
		if slices.Contains(excess, ref) {
			continue
		}
		excess = append(excess, ref)
		for _, other := range overflow {
			if other == ref {
				kept--
			}
		}
	}
	return excess, kept
}

func (r *Reconciler) removeFrom(ctx context.Context, playlistID, description string, refs ...string) error {
	_, err := tasks.Do(ctx, r.ops, description, func(ctx context.Context) (any, error) {
		return nil, r.remote.RemoveTracksFromPlaylist(ctx, playlistID, refs...)
	})
	r.Invalidate()
	if err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	return nil
}

func (r *Reconciler) backfill(ctx context.Context, playlistID string, n int, exclude []string) error {
	picks, err := r.Sample(ctx, n, exclude)
	if err != nil {
		return err
	}
	if len(picks) == 0 {
		r.logger.Warn("library has no tracks to backfill with", "wanted", n)
		return nil
	}
	if len(picks) < n {
		r.logger.Warn("library too small to fill overflow", "wanted", n, "got", len(picks))
	}

	refs := refsOf(picks)
	_, err = tasks.Do(ctx, r.ops, "add tracks to overflow playlist", func(ctx context.Context) (any, error) {
		return nil, r.remote.AddTracksToPlaylist(ctx, playlistID, -1, refs...)
	})
	r.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to backfill overflow: %w", err)
	}
	return nil
}

func refsOf(tracks []models.Track) []string {
	refs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		refs = append(refs, t.ID)
	}
	return refs
}
