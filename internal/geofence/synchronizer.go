package geofence

import (
	"context"
	"log/slog"

	"github.com/roach88/georemind/internal/reminder"
)

// Recorder receives resync outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveResync(registered, failed int, removeFailed bool)
}

// Synchronizer reconciles a Registry with the active reminder set.
//
// Resync pays O(len(active)) registrations per call; callers only invoke it
// when the active geofence set changed.
type Synchronizer struct {
	registry Registry
	radius   float64
	recorder Recorder
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithRecorder reports every resync outcome to r.
func WithRecorder(r Recorder) SynchronizerOption {
	return func(s *Synchronizer) {
		s.recorder = r
	}
}

// NewSynchronizer creates a Synchronizer registering boundaries of radiusMeters.
func NewSynchronizer(registry Registry, radiusMeters float64, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{registry: registry, radius: radiusMeters}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Radius returns the shared geofence radius in meters.
func (s *Synchronizer) Radius() float64 {
	return s.radius
}

// Resync clears the registry and registers one geofence per active reminder.
//
// A failed removal or a rejected boundary does not stop the remaining
// registrations. Failures are returned as a *ResyncError.
func (s *Synchronizer) Resync(ctx context.Context, active []reminder.Reminder) error {
	var rerr ResyncError

	if err := s.registry.RemoveAll(ctx); err != nil {
		slog.Warn("geofence removal failed, continuing with registration",
			"error", err,
		)
		rerr.RemoveErr = err
	}

	registered := 0
	for _, g := range ForReminders(active, s.radius) {
		if err := s.registry.Add(ctx, g); err != nil {
			slog.Warn("geofence registration rejected",
				"reminder_id", g.ID,
				"error", err,
			)
			rerr.Entries = append(rerr.Entries, EntryError{ID: g.ID, Err: err})
			continue
		}
		registered++
	}

	if s.recorder != nil {
		s.recorder.ObserveResync(registered, len(rerr.Entries), rerr.RemoveErr != nil)
	}

	slog.Debug("geofences resynced",
		"registered", registered,
		"failed", len(rerr.Entries),
	)

	if rerr.RemoveErr != nil || len(rerr.Entries) > 0 {
		return &rerr
	}
	return nil
}
