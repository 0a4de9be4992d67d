// Package playlists owns the remote playlists the engine plays from.
//
// The [Reconciler] keeps three named playlists on the remote service:
//   - active: user requests, played first whenever it has content
//   - overflow: a fixed-size fallback replenished at random from the saved library
//   - archive: every accepted request, append only
//
// Playlist IDs are found by name (or created) on first use. Track membership of the
// active and overflow playlists is cached for a short TTL and dropped after every write.
// Every remote call is submitted to the operation queue as its own operation, so the
// reconciler never holds the queue's worker while waiting on another operation.
package playlists
