// Package engine implements the proximity engine lifecycle controller.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every piece of engine state (active set, last fix, geofence fingerprint,
// loop generation) is owned by the Controller.Run goroutine. Reminder
// emissions, location fixes, loop completions and commands from other
// goroutines only Enqueue an event; Run processes them in FIFO order.
//
// Event Processing Flow:
//  1. Reminder source emits a snapshot -> eventReminders
//  2. Run filters the active set, resyncs geofences when the set changed,
//     recomputes proximity and publishes a new notify.Status
//  3. A location fix -> eventFix -> proximity recomputed and published
//  4. The notification loop reads the published Status once per tick
//  5. Loop exit -> eventLoopDone -> the controller stops (by default)
//
// Published Status:
// The loop goroutine never reads Run-owned fields. It reads an immutable
// notify.Status through an atomic pointer, so the active count and the
// nearest reminder it sees always belong to the same emission.
//
// Lifecycle:
//
//	Starting -> Running -> Stopping -> Stopped
//
// Starting ends at the first reminder emission. Stopping bulk-completes
// every active reminder. Location updates are released exactly once, on
// every exit path from Run.
package engine
