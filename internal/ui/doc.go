// Package ui implements the terminal monitor for a running crowdq instance using bubbletea's Elm architecture.
//
// The monitor has two views:
//  1. [QueueView] : now playing plus the ranked collaborative queue
//  2. [AddView] : a text prompt for a song title, link or track reference
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Playback events from the bus trigger a refresh, so the display follows track changes without polling the
// remote service. A one second tick keeps the progress readout moving.
//
// Keys: ↑/↓ (or j/k) move, v votes for the selected song, s skips the head, a adds a song, r refreshes, q quits.
package ui
