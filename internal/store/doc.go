// Package store provides the SQLite-backed reminder collection.
//
// The store is the engine's observable reminder source: Observe emits the
// full collection immediately and again after every mutation. Emissions are
// serialised with the mutation that caused them, so observers see
// collections in mutation order.
//
// # Deterministic Ordering
//
//   - List returns reminders in insertion order: ORDER BY seq ASC, id ASC
//   - Nearest-reminder ties resolve to the earlier reminder in that order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to five seconds on lock contention
//   - Single connection: one writer, and ":memory:" databases survive
package store
