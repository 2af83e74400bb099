package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied is returned by a Source when location access has not
// been granted.
var ErrPermissionDenied = errors.New("location permission denied")

// Fix is a single location reading.
type Fix struct {
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Time      time.Time `json:"time" yaml:"time"`
}

// Priority expresses the accuracy/power trade-off requested from the platform.
type Priority string

const (
	PriorityHighAccuracy Priority = "high_accuracy"
	PriorityBalanced     Priority = "balanced"
	PriorityLowPower     Priority = "low_power"
	PriorityPassive      Priority = "passive"
)

// Config describes the requested update cadence.
type Config struct {
	// Interval is the desired spacing between fixes.
	Interval time.Duration `yaml:"interval"`
	// FastestInterval is the minimum spacing the consumer tolerates, even if
	// the platform could deliver faster.
	FastestInterval time.Duration `yaml:"fastest_interval"`
	// MaxWait is the maximum batching window.
	MaxWait  time.Duration `yaml:"max_wait"`
	Priority Priority      `yaml:"priority"`
}

// DefaultConfig returns one high-accuracy fix per second.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		FastestInterval: time.Second,
		MaxWait:         time.Second,
		Priority:        PriorityHighAccuracy,
	}
}

// Validate checks the cadence is coherent.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("location interval must be positive, got %v", c.Interval)
	}
	if c.FastestInterval <= 0 || c.FastestInterval > c.Interval {
		return fmt.Errorf("location fastest_interval must be in (0, %v], got %v", c.Interval, c.FastestInterval)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("location max_wait must not be negative, got %v", c.MaxWait)
	}
	switch c.Priority {
	case PriorityHighAccuracy, PriorityBalanced, PriorityLowPower, PriorityPassive:
	default:
		return fmt.Errorf("invalid location priority %q", c.Priority)
	}
	return nil
}

// Subscription is an active request for updates.
type Subscription interface {
	Remove(ctx context.Context) error
}

// Source is the platform location service. onFix may be called from any
// goroutine.
type Source interface {
	RequestUpdates(ctx context.Context, cfg Config, onFix func(Fix)) (Subscription, error)
}
