// Package engine is the orchestration layer between the transport surface and
// the dialog pipeline. It owns turn lifecycles: the user message is persisted,
// the pipeline runs in its own goroutine, emitted events have their actions
// (slot deltas, slot removals, receipts, thread clears) applied to the thread
// store, and finalized events are streamed to the caller.
//
// Concurrency model:
//   - Bounded concurrent turns with per-turn cancellation via StopTurn
//   - A dedicated event-processing goroutine per turn applies actions and
//     persists events before forwarding, so a delivered event is always
//     already durable
//   - Non-partial events signal the resume channel so a waiting pipeline can
//     continue after user-visible output
package engine
