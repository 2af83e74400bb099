package store

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/georemind/internal/reminder"
)

// Observe registers fn, emits the current collection to it immediately,
// then again after every mutation until cancel is called. A failed read is
// emitted as a Snapshot with Err set.
//
// fn runs while the store's mutation lock is held; it must not call back
// into the Store.
func (s *Store) Observe(ctx context.Context, fn func(reminder.Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	fn(s.snapshot(ctx))

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Refresh re-emits the current collection to every observer without
// changing it.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(ctx)
}

func (s *Store) snapshot(ctx context.Context) reminder.Snapshot {
	reminders, err := s.List(ctx)
	if err != nil {
		slog.Warn("reminder read failed", "error", err)
		return reminder.Snapshot{Err: err}
	}
	return reminder.Snapshot{Reminders: reminders}
}

// publishLocked emits the current collection. Caller holds s.mu.
func (s *Store) publishLocked(ctx context.Context) {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshot(ctx)
	for _, id := range s.observerIDs() {
		s.observers[id](snap)
	}
}

// observerIDs returns registration order so emissions are deterministic.
func (s *Store) observerIDs() []uint64 {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
