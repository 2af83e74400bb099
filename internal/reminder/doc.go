// Package reminder defines the location reminder model and the pure
// functions the engine derives from a reminder collection.
//
// A Reminder is active iff it is not completed. The active set is always
// recomputed from a full collection (see FilterActive); it is never patched
// incrementally.
package reminder
