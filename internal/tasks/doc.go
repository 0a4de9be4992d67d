// Package tasks serializes calls to the remote playback service.
//
// # Operation Queue
//
// Every remote call is submitted to a [Queue] with a short description. A single
// worker runs non-critical operations one at a time, so concurrent callers never
// race each other against the rate limited API:
//
//   - [WithPriority] places an operation at the front of the pending list. It never
//     preempts the operation that is already running.
//   - Critical operations (descriptions mentioning "switch", "resume", "transfer playback"
//     or "start playback") run immediately in the caller's goroutine.
//   - Each operation gets a timeout from its [Category]: 5s critical, 10s default and
//     30s long-running ("liked songs", "library", "scan").
//
// A golang.org/x/time/rate limiter paces the worker between operations.
//
// # Results
//
// [Queue.Submit] blocks until the outcome is known and returns a [Result]; it never
// panics. [Do] is the typed form used by callers:
//
//	tracks, err := tasks.Do(ctx, q, "get playlist tracks", func(ctx context.Context) ([]models.Track, error) {
//		return remote.PlaylistTracks(ctx, id)
//	})
//
// A task must not submit another non-critical operation to the same queue, because
// the single worker would wait on itself. Compose remote calls outside the queue.
package tasks
