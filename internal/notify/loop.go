package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/georemind/internal/clock"
)

// Default loop settings.
const (
	DefaultTickBudget   = 500
	DefaultTickInterval = time.Second
	DefaultMaxActive    = 100
)

// Exit reports why a loop run ended.
type Exit int

const (
	// ExitBudget means every tick of the budget was evaluated.
	ExitBudget Exit = iota + 1
	// ExitDrained means a tick observed zero active reminders.
	ExitDrained
	// ExitCancelled means the context was cancelled.
	ExitCancelled
)

func (e Exit) String() string {
	switch e {
	case ExitBudget:
		return "budget"
	case ExitDrained:
		return "drained"
	case ExitCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Exit(%d)", int(e))
	}
}

// LoopConfig bounds a loop run.
type LoopConfig struct {
	TickBudget   int           `yaml:"tick_budget"`
	TickInterval time.Duration `yaml:"tick_interval"`
	MaxActive    int           `yaml:"max_active"`
}

// DefaultLoopConfig returns 500 ticks, one second apart, emitting for up to
// 100 active reminders.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickBudget:   DefaultTickBudget,
		TickInterval: DefaultTickInterval,
		MaxActive:    DefaultMaxActive,
	}
}

// Validate checks that every bound is positive.
func (c LoopConfig) Validate() error {
	if c.TickBudget <= 0 {
		return fmt.Errorf("tick budget must be positive, got %d", c.TickBudget)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MaxActive <= 0 {
		return fmt.Errorf("max active must be positive, got %d", c.MaxActive)
	}
	return nil
}

// Recorder observes loop activity. *metrics.Metrics implements it.
type Recorder interface {
	NotificationSent()
	NotificationFailed()
	TickSkipped()
	LoopExited(reason string)
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent()   {}
func (nopRecorder) NotificationFailed() {}
func (nopRecorder) TickSkipped()        {}
func (nopRecorder) LoopExited(string)   {}

// Loop is the bounded periodic notifier.
//
// A Loop may be run any number of times, but not concurrently.
type Loop struct {
	cfg      LoopConfig
	notifier Notifier
	ticker   clock.TickerFactory
	recorder Recorder
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTicker replaces the wall-clock ticker.
func WithTicker(f clock.TickerFactory) LoopOption {
	return func(l *Loop) {
		l.ticker = f
	}
}

// WithRecorder reports loop activity to r.
func WithRecorder(r Recorder) LoopOption {
	return func(l *Loop) {
		if r != nil {
			l.recorder = r
		}
	}
}

// NewLoop creates a Loop posting to notifier.
func NewLoop(notifier Notifier, cfg LoopConfig, opts ...LoopOption) *Loop {
	l := &Loop{
		cfg:      cfg,
		notifier: notifier,
		ticker:   clock.Real,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the loop bounds.
func (l *Loop) Config() LoopConfig {
	return l.cfg
}

// Run evaluates up to TickBudget ticks. The first tick is evaluated
// immediately and each following one after TickInterval. status is called
// once per tick and must return a consistent snapshot.
//
// Run returns a non-nil error only for an invalid configuration.
func (l *Loop) Run(ctx context.Context, status func() Status) (Exit, error) {
	if err := l.cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid loop config: %w", err)
	}

	t := l.ticker(l.cfg.TickInterval)
	defer t.Stop()

	exit := l.run(ctx, t, status)
	l.recorder.LoopExited(exit.String())
	slog.Debug("notification loop exited", "reason", exit.String())
	return exit, nil
}

func (l *Loop) run(ctx context.Context, t clock.Ticker, status func() Status) Exit {
	for tick := 1; tick <= l.cfg.TickBudget; tick++ {
		if ctx.Err() != nil {
			return ExitCancelled
		}
		if l.evaluate(ctx, tick, status()) {
			return ExitDrained
		}
		if tick == l.cfg.TickBudget {
			break
		}
		select {
		case <-ctx.Done():
			return ExitCancelled
		case <-t.C():
		}
	}
	return ExitBudget
}

// evaluate handles one tick and reports whether the loop should stop.
func (l *Loop) evaluate(ctx context.Context, tick int, s Status) bool {
	switch {
	case s.Degraded:
		l.post(ctx, tick, Loading())
	case s.Active == 0:
		return true
	case s.Active < 0 || s.Active > l.cfg.MaxActive:
		l.recorder.TickSkipped()
	default:
		l.post(ctx, tick, ContentFor(s))
	}
	return false
}

func (l *Loop) post(ctx context.Context, tick int, c Content) {
	if err := l.notifier.Notify(ctx, StatusChannel, c); err != nil {
		slog.Warn("notification failed", "tick", tick, "error", err)
		l.recorder.NotificationFailed()
		return
	}
	l.recorder.NotificationSent()
}
