// Package server is the local control surface of a crowdq instance.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Control API
//
// [ControlHandler] exposes the collaborative queue as JSON:
//
//	GET  /health
//	GET  /api/queue
//	GET  /api/now-playing
//	POST /api/songs   {title, ref, user_id, priority}
//	POST /api/votes   {position, user_id}   (1-based position)
//	POST /api/skip    {count}
//
// Failures are reported as {"error": "..."} with a message meant for the listener;
// internal errors are logged and never written to the response.
//
// # Event Stream
//
// [EventsHandler] upgrades GET /api/events to a websocket and forwards every
// track_changed and now_playing event as one JSON [Frame]. Delivery is lossy: a slow
// client misses frames instead of holding up playback.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the authorization code flow for `crowdq setup auth`. It
// validates the state parameter, exchanges the code once and sends the result through
// a channel.
package server
