package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Hook runs before a [FakeRemote] method. A non-nil error is returned to the caller.
type Hook func(ctx context.Context) error

type fakePlaylist struct {
	meta models.Playlist
	refs []string
}

// FakeRemote is an in-memory remote playback service. It is safe for concurrent use.
//
// Every method counts its calls, runs an optional [Hook] and then pops a queued failure
// (see [FakeRemote.FailNext]) before doing its work.
type FakeRemote struct {
	mu sync.Mutex

	tracks        map[string]models.Track
	trackOrder    []string
	library       []string
	searchResults map[string][]string
	playlists     map[string]*fakePlaylist
	playlistOrder []string
	devices       []models.Device
	playback      *models.Playback

	plays     []models.PlayOptions
	transfers []string
	calls     map[string]int
	failures  map[string][]error
	hooks     map[string]Hook
	nextID    int
}

// NewFakeRemote creates an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		tracks:        make(map[string]models.Track),
		searchResults: make(map[string][]string),
		playlists:     make(map[string]*fakePlaylist),
		calls:         make(map[string]int),
		failures:      make(map[string][]error),
		hooks:         make(map[string]Hook),
	}
}

// TrackID returns a valid 22 character reference for n.
func TrackID(n int) string {
	return fmt.Sprintf("trk%019d", n)
}

// AddTrack puts t in the catalog.
func (f *FakeRemote) AddTrack(t models.Track) models.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tracks[t.ID]; !ok {
		f.trackOrder = append(f.trackOrder, t.ID)
	}
	f.tracks[t.ID] = t
	return t
}

// AddTracks creates n catalog tracks titled "Song <i>" with 3 minute durations.
func (f *FakeRemote) AddTracks(n int) []models.Track {
	f.mu.Lock()
	start := len(f.trackOrder)
	f.mu.Unlock()

	out := make([]models.Track, 0, n)
	for i := range n {
		idx := start + i + 1
		out = append(out, f.AddTrack(models.Track{
			ID:         TrackID(idx),
			Title:      fmt.Sprintf("Song %d", idx),
			Artists:    []string{fmt.Sprintf("Artist %d", idx)},
			DurationMS: 180000,
		}))
	}
	return out
}

// SetLibrary replaces the saved library.
func (f *FakeRemote) SetLibrary(refs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.library = slices.Clone(refs)
}

// SetSearchResults pins the ranked results for query.
func (f *FakeRemote) SetSearchResults(query string, refs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchResults[query] = slices.Clone(refs)
}

// AddDevice registers a playback device.
func (f *FakeRemote) AddDevice(d models.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, d)
}

// SeedPlaylist creates a playlist named name containing refs.
func (f *FakeRemote) SeedPlaylist(name string, refs ...string) models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.createLocked(name, models.PlaylistOptions{})
	p.refs = slices.Clone(refs)
	return f.metaLocked(p)
}

// PlaylistRefs returns the refs of playlist id in order.
func (f *FakeRemote) PlaylistRefs(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.playlists[id]; ok {
		return slices.Clone(p.refs)
	}
	return nil
}

// PlaylistByName looks a playlist up by name.
func (f *FakeRemote) PlaylistByName(name string) (models.Playlist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.playlistOrder {
		if p := f.playlists[id]; p.meta.Name == name {
			return f.metaLocked(p), true
		}
	}
	return models.Playlist{}, false
}

// SetPlayback replaces the current playback state. nil means no active device.
func (f *FakeRemote) SetPlayback(p *models.Playback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p == nil {
		f.playback = nil
		return
	}
	cp := *p
	f.playback = &cp
}

// SetPlaying makes ref the playing track from contextURI.
func (f *FakeRemote) SetPlaying(ref, contextURI string, progressMS int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.trackLocked(ref)
	deviceID := ""
	if f.playback != nil {
		deviceID = f.playback.DeviceID
	}
	f.playback = &models.Playback{Track: &t, ProgressMS: progressMS, IsPlaying: true, DeviceID: deviceID, ContextURI: contextURI}
}

// Pause keeps the current track and progress loaded with nothing playing.
func (f *FakeRemote) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playback != nil {
		f.playback.IsPlaying = false
	}
}

// Stop leaves the device loaded with nothing playing.
func (f *FakeRemote) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playback != nil {
		f.playback.IsPlaying = false
		f.playback.Track = nil
	}
}

// FailNext queues errs to be returned by the next calls to method.
func (f *FakeRemote) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

// OnCall installs h for method, replacing any previous hook.
func (f *FakeRemote) OnCall(method string, h Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[method] = h
}

// Calls reports how many times method was invoked.
func (f *FakeRemote) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Plays returns every Play call in order.
func (f *FakeRemote) Plays() []models.PlayOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.plays)
}

// Transfers returns every device playback was transferred to.
func (f *FakeRemote) Transfers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.transfers)
}

func (f *FakeRemote) before(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	hook := f.hooks[method]
	var queued error
	if errs := f.failures[method]; len(errs) > 0 {
		queued = errs[0]
		f.failures[method] = errs[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if queued != nil {
		return queued
	}
	return ctx.Err()
}

func (f *FakeRemote) trackLocked(ref string) models.Track {
	if t, ok := f.tracks[ref]; ok {
		return t
	}
	return models.Track{ID: ref, Title: ref}
}

func (f *FakeRemote) createLocked(name string, opts models.PlaylistOptions) *fakePlaylist {
	f.nextID++
	id := fmt.Sprintf("pl%020d", f.nextID)
	p := &fakePlaylist{meta: models.Playlist{
		ID:          id,
		Name:        name,
		Description: opts.Description,
		Public:      opts.Public,
		URI:         "spotify:playlist:" + id,
	}}
	f.playlists[id] = p
	f.playlistOrder = append(f.playlistOrder, id)
	return p
}

func (f *FakeRemote) metaLocked(p *fakePlaylist) models.Playlist {
	m := p.meta
	m.TrackCount = len(p.refs)
	return m
}

func (f *FakeRemote) Name() string { return "fake" }

func (f *FakeRemote) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if err := f.before(ctx, "SearchTracks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Track
	if refs, ok := f.searchResults[query]; ok {
		for _, ref := range refs {
			out = append(out, f.trackLocked(ref))
		}
	} else {
		q := strings.ToLower(query)
		for _, id := range f.trackOrder {
			if t := f.tracks[id]; strings.Contains(strings.ToLower(t.Title), q) {
				out = append(out, t)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeRemote) Track(ctx context.Context, id string) (*models.Track, error) {
	if err := f.before(ctx, "Track"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return &t, nil
}

func (f *FakeRemote) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	if err := f.before(ctx, "CurrentPlayback"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playback == nil {
		return nil, nil
	}
	cp := *f.playback
	if cp.Track != nil {
		t := *cp.Track
		cp.Track = &t
	}
	return &cp, nil
}

func (f *FakeRemote) Play(ctx context.Context, opts models.PlayOptions) error {
	if err := f.before(ctx, "Play"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	deviceID := opts.DeviceID
	if deviceID == "" {
		for _, d := range f.devices {
			if d.IsActive {
				deviceID = d.ID
			}
		}
		if deviceID == "" {
			return fmt.Errorf("%w: no active device", shared.ErrNoDevice)
		}
	}
	f.activateLocked(deviceID)
	f.plays = append(f.plays, opts)

	ref := ""
	if opts.OffsetURI != "" {
		ref = strings.TrimPrefix(opts.OffsetURI, "spotify:track:")
	} else if p, ok := f.playlists[strings.TrimPrefix(opts.ContextURI, "spotify:playlist:")]; ok && len(p.refs) > 0 {
		ref = p.refs[0]
	}

	pb := &models.Playback{IsPlaying: ref != "", DeviceID: deviceID, ContextURI: opts.ContextURI}
	if ref != "" {
		t := f.trackLocked(ref)
		pb.Track = &t
	}
	f.playback = pb
	return nil
}

func (f *FakeRemote) activateLocked(deviceID string) {
	for i := range f.devices {
		f.devices[i].IsActive = f.devices[i].ID == deviceID
	}
}

func (f *FakeRemote) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	if err := f.before(ctx, "TransferPlayback"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activateLocked(deviceID)
	f.transfers = append(f.transfers, deviceID)
	if f.playback != nil {
		f.playback.DeviceID = deviceID
	}
	return nil
}

func (f *FakeRemote) Devices(ctx context.Context) ([]models.Device, error) {
	if err := f.before(ctx, "Devices"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.devices), nil
}

func (f *FakeRemote) UserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if err := f.before(ctx, "UserPlaylists"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Playlist, 0, len(f.playlistOrder))
	for _, id := range f.playlistOrder {
		out = append(out, f.metaLocked(f.playlists[id]))
	}
	return out, nil
}

func (f *FakeRemote) CreatePlaylist(ctx context.Context, name string, opts models.PlaylistOptions) (*models.Playlist, error) {
	if err := f.before(ctx, "CreatePlaylist"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.metaLocked(f.createLocked(name, opts))
	return &m, nil
}

func (f *FakeRemote) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if err := f.before(ctx, "PlaylistTracks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	out := make([]models.Track, 0, len(p.refs))
	for _, ref := range p.refs {
		out = append(out, f.trackLocked(ref))
	}
	return out, nil
}

func (f *FakeRemote) AddTracksToPlaylist(ctx context.Context, playlistID string, position int, refs ...string) error {
	if err := f.before(ctx, "AddTracksToPlaylist"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	if position < 0 || position > len(p.refs) {
		position = len(p.refs)
	}
	p.refs = slices.Insert(p.refs, position, refs...)
	return nil
}

func (f *FakeRemote) RemoveTracksFromPlaylist(ctx context.Context, playlistID string, refs ...string) error {
	if err := f.before(ctx, "RemoveTracksFromPlaylist"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	p.refs = slices.DeleteFunc(p.refs, func(r string) bool { return slices.Contains(refs, r) })
	return nil
}

func (f *FakeRemote) SavedTracks(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	if err := f.before(ctx, "SavedTracks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	page := &models.TrackPage{Offset: offset, Total: len(f.library)}
	if offset >= len(f.library) {
		return page, nil
	}
	end := min(offset+limit, len(f.library))
	for _, ref := range f.library[offset:end] {
		page.Tracks = append(page.Tracks, f.trackLocked(ref))
	}
	return page, nil
}
