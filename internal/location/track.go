package location

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/georemind/internal/clock"
)

// Track is a recorded sequence of fixes replayed by TrackSource.
//
//	permission_denied: false
//	loop: true
//	fixes:
//	  - { latitude: 45.0703, longitude: 7.6869 }
//	  - { latitude: 45.0710, longitude: 7.6872 }
type Track struct {
	Fixes            []Fix `yaml:"fixes"`
	Loop             bool  `yaml:"loop,omitempty"`
	PermissionDenied bool  `yaml:"permission_denied,omitempty"`
}

// LoadTrack reads a YAML track file, rejecting unknown fields.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track file: %w", err)
	}

	var track Track
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&track); err != nil {
		return nil, fmt.Errorf("parse track file: %w", err)
	}
	for i, f := range track.Fixes {
		if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
			return nil, fmt.Errorf("track fix %d: coordinates out of range", i)
		}
	}
	return &track, nil
}

// TrackSource is a Source that replays a Track, one fix per interval.
type TrackSource struct {
	track     Track
	newTicker clock.TickerFactory
	now       func() time.Time
}

// TrackOption configures a TrackSource.
type TrackOption func(*TrackSource)

// WithTrackTicker overrides the ticker used to pace deliveries.
func WithTrackTicker(f clock.TickerFactory) TrackOption {
	return func(t *TrackSource) {
		t.newTicker = f
	}
}

// NewTrackSource creates a TrackSource.
func NewTrackSource(track Track, opts ...TrackOption) *TrackSource {
	t := &TrackSource{
		track:     track,
		newTicker: clock.Real,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RequestUpdates starts replaying the track. The replay outlives ctx; it
// stops when the returned Subscription is removed or the track ends.
func (t *TrackSource) RequestUpdates(ctx context.Context, cfg Config, onFix func(Fix)) (Subscription, error) {
	if t.track.PermissionDenied {
		return nil, ErrPermissionDenied
	}

	interval := cfg.Interval
	if cfg.FastestInterval > interval {
		interval = cfg.FastestInterval
	}

	replayCtx, cancel := context.WithCancel(context.Background())
	sub := &trackSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		ticker := t.newTicker(interval)
		defer ticker.Stop()

		for {
			for _, f := range t.track.Fixes {
				select {
				case <-replayCtx.Done():
					return
				case <-ticker.C():
				}
				if f.Time.IsZero() {
					f.Time = t.now()
				}
				onFix(f)
			}
			if !t.track.Loop || len(t.track.Fixes) == 0 {
				return
			}
		}
	}()

	return sub, nil
}

type trackSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *trackSubscription) Remove(ctx context.Context) error {
	s.once.Do(s.cancel)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
