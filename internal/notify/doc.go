// Package notify implements the periodic status notification loop and the
// notification presentation boundary.
//
// The loop never holds engine state. Each tick reads one immutable Status
// published by the engine and decides whether to emit, skip, or stop:
//
//   - Degraded: emit the loading placeholder
//   - Active == 0: stop (ExitDrained)
//   - 1 <= Active <= MaxActive: emit the nearest reminder and its distance
//   - otherwise (unknown or above MaxActive): skip the tick
//
// The loop ends after TickBudget evaluations (ExitBudget) or on context
// cancellation (ExitCancelled). Cancellation is not an error.
package notify
