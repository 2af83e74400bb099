package harness

import (
	"context"
	"sync"

	"github.com/roach88/georemind/internal/reminder"
	"github.com/roach88/georemind/internal/store"
)

// switchableSource is a store whose stream can be made to fail. While
// failing, every emission carries the failure instead of the collection.
type switchableSource struct {
	store *store.Store

	mu  sync.Mutex
	err error
}

func newSwitchableSource(st *store.Store) *switchableSource {
	return &switchableSource{store: st}
}

func (s *switchableSource) Observe(ctx context.Context, fn func(reminder.Snapshot)) (cancel func()) {
	return s.store.Observe(ctx, func(snap reminder.Snapshot) {
		s.mu.Lock()
		err := s.err
		s.mu.Unlock()
		if err != nil {
			snap = reminder.Snapshot{Err: err}
		}
		fn(snap)
	})
}

func (s *switchableSource) Complete(ctx context.Context, id string) error {
	return s.store.Complete(ctx, id)
}

// Fail makes the stream emit err, starting now.
func (s *switchableSource) Fail(ctx context.Context, err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.store.Refresh(ctx)
}

// Recover resumes normal emissions, starting now.
func (s *switchableSource) Recover(ctx context.Context) {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.store.Refresh(ctx)
}
