// Spotify Web API implementation of [Remote]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI is used when the credentials omit redirect_uri.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	playlistPageSize = 100
	playlistsLimit   = 50
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
	IsLocal    bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyDevice is a playback target.
type SpotifyDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsActive     bool   `json:"is_active"`
	IsRestricted bool   `json:"is_restricted"`
}

// SpotifyPlaybackState is the response of GET /me/player.
type SpotifyPlaybackState struct {
	Device     SpotifyDevice `json:"device"`
	ProgressMS int           `json:"progress_ms"`
	IsPlaying  bool          `json:"is_playing"`
	Item       *SpotifyTrack `json:"item"`
	Context    *struct {
		URI string `json:"uri"`
	} `json:"context"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
	URI         string               `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyPlaylistItem represents a track within a playlist or the saved library.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist items or saved tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistItem `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Next   *string               `json:"next"`
}

func (t *SpotifyTrack) model() models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{ID: t.ID, Title: t.Name, Artists: artists, DurationMS: t.DurationMS}
}

func (p SpotifySimplePlaylist) model() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
		URI:         p.URI,
	}
}

// tracksOf converts page items, skipping local files and removed tracks which have no reference.
func tracksOf(items []SpotifyPlaylistItem) []models.Track {
	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
			continue
		}
		tracks = append(tracks, item.Track.model())
	}
	return tracks
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at a different API root.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces [http.DefaultClient].
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithTokenURL replaces the OAuth token endpoint.
func WithTokenURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = u }
}

// SpotifyService implements [Remote] for the Spotify Web API.
type SpotifyService struct {
	config      *oauth2.Config
	httpClient  *http.Client
	baseURL     string
	credentials map[string]string

	mu             sync.RWMutex
	token          *oauth2.Token
	userID         string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-library-read",
			"user-read-playback-state",
			"user-modify-playback-state",
			"user-read-currently-playing",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate installs a token. Expects "access_token" and/or "refresh_token", or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	access, refresh := credentials["access_token"], credentials["refresh_token"]
	if access != "" || refresh != "" {
		s.SetToken(&oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(s.oauthContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.SetToken(token)
		s.notify(token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token, refresh_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken replaces the current token.
func (s *SpotifyService) SetToken(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns a copy of the current token, or nil.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// SetTokenRefreshCallback registers fn to receive every newly issued token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) notify(token *oauth2.Token) {
	s.mu.RLock()
	fn := s.onTokenRefresh
	s.mu.RUnlock()
	if fn != nil {
		fn(token)
	}
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Refresh exchanges the refresh token for a new access token.
func (s *SpotifyService) Refresh(ctx context.Context) error {
	current := s.Token()
	if current == nil || current.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}

	s.SetToken(token)
	s.notify(token)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs an authenticated request and decodes a JSON response into result.
//
// A 204 response leaves result untouched and reports found=false.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) (found bool, err error) {
	token := s.Token()
	if token == nil || token.AccessToken == "" {
		if token != nil && token.RefreshToken != "" {
			return false, fmt.Errorf("%w: no access token", shared.ErrTokenExpired)
		}
		return false, shared.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%s %s: %w", method, endpoint, err)
		}
		return false, fmt.Errorf("%w: %s %s: %w", shared.ErrTransient, method, endpoint, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp, method, endpoint); err != nil {
		return false, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return true, nil
}

// statusError maps a non-2xx response onto the shared error sentinels.
func statusError(resp *http.Response, method, endpoint string) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	detail := fmt.Sprintf("%s %s: status %d", method, endpoint, code)
	if payload.Error.Message != "" {
		detail += ": " + payload.Error.Message
	}

	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, detail)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, detail)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", shared.ErrRateLimited, detail)
	case code >= 500:
		return fmt.Errorf("%w: %s", shared.ErrTransient, detail)
	default:
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, detail)
	}
}

// UserProfile retrieves the current user's profile. The ID is cached for playlist creation.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if _, err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return &user, nil
}

// SearchTracks returns up to limit tracks for query, in the service's ranking.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if _, err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for i := range response.Tracks.Items {
		tracks = append(tracks, response.Tracks.Items[i].model())
	}
	return tracks, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, id string) (*models.Track, error) {
	var track SpotifyTrack
	if _, err := s.doRequest(ctx, http.MethodGet, "/tracks/"+url.PathEscape(id), nil, &track); err != nil {
		return nil, err
	}
	m := track.model()
	return &m, nil
}

// CurrentPlayback returns nil when the API reports no active device (204).
func (s *SpotifyService) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	var state SpotifyPlaybackState
	found, err := s.doRequest(ctx, http.MethodGet, "/me/player", nil, &state)
	if err != nil || !found {
		return nil, err
	}

	p := &models.Playback{
		ProgressMS: state.ProgressMS,
		IsPlaying:  state.IsPlaying,
		DeviceID:   state.Device.ID,
	}
	if state.Item != nil && state.Item.ID != "" {
		t := state.Item.model()
		p.Track = &t
	}
	if state.Context != nil {
		p.ContextURI = state.Context.URI
	}
	return p, nil
}

// Play starts playback of opts.ContextURI.
func (s *SpotifyService) Play(ctx context.Context, opts models.PlayOptions) error {
	endpoint := "/me/player/play"
	if opts.DeviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(opts.DeviceID)
	}

	body := map[string]any{}
	if opts.ContextURI != "" {
		body["context_uri"] = opts.ContextURI
	}
	if opts.OffsetURI != "" {
		body["offset"] = map[string]string{"uri": opts.OffsetURI}
	}

	_, err := s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
	return err
}

// TransferPlayback moves playback to deviceID.
func (s *SpotifyService) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	_, err := s.doRequest(ctx, http.MethodPut, "/me/player", body, nil)
	return err
}

// Devices lists the user's available devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.Device, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if _, err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, models.Device(d))
	}
	return devices, nil
}

// UserPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) UserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", playlistsLimit, offset)
		var response SpotifyPaginatedPlaylists
		if _, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, sp.model())
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += playlistsLimit
	}

	return all, nil
}

// CreatePlaylist creates a playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string, opts models.PlaylistOptions) (*models.Playlist, error) {
	s.mu.RLock()
	userID := s.userID
	s.mu.RUnlock()
	if userID == "" {
		user, err := s.UserProfile(ctx)
		if err != nil {
			return nil, err
		}
		userID = user.ID
	}

	body := map[string]any{"name": name, "description": opts.Description, "public": opts.Public}
	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if _, err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}
	p := created.model()
	return &p, nil
}

// PlaylistTracks returns every track in the playlist, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var all []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), playlistPageSize, offset)
		var page SpotifyPaginatedTracks
		if _, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		all = append(all, tracksOf(page.Items)...)

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += playlistPageSize
	}

	return all, nil
}

// AddTracksToPlaylist inserts refs at position, or appends them when position < 0.
func (s *SpotifyService) AddTracksToPlaylist(ctx context.Context, playlistID string, position int, refs ...string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(refs); start += playlistPageSize {
		end := min(start+playlistPageSize, len(refs))
		uris := make([]string, 0, end-start)
		for _, ref := range refs[start:end] {
			uris = append(uris, TrackURI(ref))
		}

		body := map[string]any{"uris": uris}
		if position >= 0 {
			body["position"] = position + start
		}
		if _, err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTracksFromPlaylist removes every occurrence of refs from the playlist.
func (s *SpotifyService) RemoveTracksFromPlaylist(ctx context.Context, playlistID string, refs ...string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(refs); start += playlistPageSize {
		end := min(start+playlistPageSize, len(refs))
		tracks := make([]map[string]string, 0, end-start)
		for _, ref := range refs[start:end] {
			tracks = append(tracks, map[string]string{"uri": TrackURI(ref)})
		}
		if _, err := s.doRequest(ctx, http.MethodDelete, endpoint, map[string]any{"tracks": tracks}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if _, err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &models.TrackPage{Tracks: tracksOf(response.Items), Offset: response.Offset, Total: response.Total}, nil
}

var _ Remote = (*SpotifyService)(nil)
