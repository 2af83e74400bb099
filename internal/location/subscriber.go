package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Subscriber wraps a Source with acquire-once/release-once semantics.
//
// Thread-safety: all methods are safe for concurrent use. Fixes that arrive
// after Unsubscribe are dropped.
type Subscriber struct {
	source Source

	mu     sync.Mutex
	sub    Subscription
	active bool
	gen    uint64
}

// NewSubscriber creates an idle Subscriber.
func NewSubscriber(source Source) *Subscriber {
	return &Subscriber{source: source}
}

// Subscribe requests updates with cfg. A missing permission is not an error:
// the subscriber stays idle and Subscribe returns nil. Calling Subscribe
// while already subscribed is a no-op.
func (s *Subscriber) Subscribe(ctx context.Context, cfg Config, onFix func(Fix)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	// Marked active before the request so fixes delivered synchronously by
	// the source are kept.
	s.active = true
	s.mu.Unlock()

	deliver := func(f Fix) {
		if s.current(gen) {
			onFix(f)
		}
	}

	sub, err := s.source.RequestUpdates(ctx, cfg, deliver)

	s.mu.Lock()
	if err != nil {
		if s.gen == gen {
			s.active = false
		}
		s.mu.Unlock()
		if errors.Is(err, ErrPermissionDenied) {
			slog.Info("location permission unavailable, staying idle")
			return nil
		}
		return fmt.Errorf("request location updates: %w", err)
	}
	if !s.active || s.gen != gen {
		// Unsubscribed while the request was in flight.
		s.mu.Unlock()
		if rmErr := sub.Remove(ctx); rmErr != nil {
			return fmt.Errorf("remove location updates: %w", rmErr)
		}
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	slog.Info("location updates requested",
		"interval", cfg.Interval,
		"fastest_interval", cfg.FastestInterval,
		"max_wait", cfg.MaxWait,
		"priority", cfg.Priority,
	)
	return nil
}

func (s *Subscriber) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.gen == gen
}

// Subscribed reports whether updates are currently requested.
func (s *Subscriber) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Unsubscribe releases the subscription. Idempotent.
func (s *Subscriber) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.active = false
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Remove(ctx); err != nil {
		return fmt.Errorf("remove location updates: %w", err)
	}
	slog.Info("location updates removed")
	return nil
}
