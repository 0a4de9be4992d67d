// Package services talks to the outside world: the remote playback service and the local control server.
//
// # Remote Interface
//
// [Remote] is the operation contract every other component consumes: search, playback
// state and control, devices, playlists and the saved library. [SpotifyService]
// implements it over the Spotify Web API.
//
// # Spotify Implementation
//
// [SpotifyService] holds an [oauth2.Token] and sets the bearer header itself so that an
// expired token surfaces as [shared.ErrTokenExpired] instead of being refreshed silently.
// [SpotifyService.Refresh] exchanges the refresh token through [oauth2.Config.TokenSource]
// and reports the new pair to the refresh callback so it can be written back to config.
//
// # Auth Guard
//
// [TokenGuard] wraps a call: on [shared.ErrTokenExpired] it refreshes once and retries
// once. A second expiry or a failed refresh becomes [shared.ErrAuthFailed]. [GuardedRemote]
// applies the guard to every [Remote] method.
//
// # Error Handling
//
// HTTP status codes map onto the shared sentinels:
//   - 401 : [shared.ErrTokenExpired]
//   - 404 : [shared.ErrNotFound]
//   - 429 : [shared.ErrRateLimited]
//   - 5xx : [shared.ErrTransient]
//
// [Retry] repeats read-heavy calls a bounded number of times when [shared.IsRetryable].
//
// # Control Server Client
//
// [APIService] is the HTTP client the CLI uses to reach a running crowdq server.
package services
