// Package coordinator is the top-level sync state machine.
//
// A [Coordinator] is either idle ([NoTrack]) or [Playing] a track. It consumes track
// transitions from the watcher, retires finished tracks from the playlists and the
// collaborative queue, and decides which playlist the remote device should play from.
// It also serves the listener commands: add, vote, skip and the queue and now playing views.
//
// Two signal sources feed it: the watcher's polled transitions and an advisory timer armed
// for the predicted end of the current track. A polled transition always wins. The timer
// only acts when an immediate poll confirms nothing is playing and no transition happened.
package coordinator
