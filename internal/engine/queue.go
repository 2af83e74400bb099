package engine

import (
	"sync"

	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/reminder"
)

// eventKind distinguishes between event kinds.
type eventKind int

const (
	// eventReminders carries a full reminder collection emission.
	eventReminders eventKind = iota + 1
	// eventFix carries a location fix.
	eventFix
	// eventDeactivate asks to complete one active reminder.
	eventDeactivate
	// eventStart asks to restart the loop and retry the location subscription.
	eventStart
	// eventLoopDone reports that a notification loop run finished.
	eventLoopDone
	// eventStop asks the controller to stop.
	eventStop
	// eventFlush is a barrier closed once every earlier event is processed.
	eventFlush
)

func (k eventKind) String() string {
	switch k {
	case eventReminders:
		return "reminders"
	case eventFix:
		return "fix"
	case eventDeactivate:
		return "deactivate"
	case eventStart:
		return "start"
	case eventLoopDone:
		return "loop_done"
	case eventStop:
		return "stop"
	case eventFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// event is one unit of work for the Run loop. Only the fields of its kind
// are set.
type event struct {
	kind     eventKind
	snapshot reminder.Snapshot
	fix      location.Fix
	id       string
	gen      uint64
	exit     notify.Exit
	done     chan struct{}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that source callbacks, which may run while the
// source holds its own lock, never block.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// Release the snapshot slice held by the slot
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
