package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/georemind/internal/clock"
	"github.com/roach88/georemind/internal/geofence"
	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/metrics"
	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/proximity"
	"github.com/roach88/georemind/internal/reminder"
)

// ReminderSource is the observable reminder collection.
//
// Observe must emit the current collection to fn immediately, then again
// after every mutation, until cancel is called. fn only enqueues, so it is
// safe to call while the source holds its own locks.
type ReminderSource interface {
	Observe(ctx context.Context, fn func(reminder.Snapshot)) (cancel func())
	Complete(ctx context.Context, id string) error
}

// DefaultShutdownTimeout bounds the stopping sequence when Run's context
// is cancelled.
const DefaultShutdownTimeout = 5 * time.Second

// Controller is the single-writer proximity engine.
//
// Thread-safety model:
//   - Deactivate, Start, Stop, Flush, State, Status: safe from any goroutine
//   - Run: must be called exactly once
type Controller struct {
	source     ReminderSource
	notifier   notify.Notifier
	subscriber *location.Subscriber
	syncer     *geofence.Synchronizer
	calc       *proximity.Calculator
	loop       *notify.Loop
	metrics    *metrics.Metrics

	radius          float64
	locationCfg     location.Config
	loopCfg         notify.LoopConfig
	ticker          clock.TickerFactory
	distance        proximity.DistanceFunc
	stopOnLoopExit  bool
	shutdownTimeout time.Duration

	queue  *eventQueue
	state  atomic.Int32
	status atomic.Pointer[notify.Status]
	ran    atomic.Bool
	done   chan struct{}

	// Owned by the Run goroutine.
	known         bool
	degraded      bool
	active        []reminder.Reminder
	fix           *location.Fix
	fingerprint   string
	synced        bool
	cancelObserve func()
	loopGen       uint64
	loopCancel    context.CancelFunc
	loopRunning   bool
	loopWG        sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithRadius sets the shared geofence radius in meters.
//
// Default: 100 (geofence.DefaultRadiusMeters)
func WithRadius(meters float64) Option {
	return func(c *Controller) {
		c.radius = meters
	}
}

// WithLocationConfig sets the location request parameters.
func WithLocationConfig(cfg location.Config) Option {
	return func(c *Controller) {
		c.locationCfg = cfg
	}
}

// WithLoopConfig sets the notification loop bounds.
func WithLoopConfig(cfg notify.LoopConfig) Option {
	return func(c *Controller) {
		c.loopCfg = cfg
	}
}

// WithTicker replaces the wall-clock ticker driving the notification loop.
func WithTicker(f clock.TickerFactory) Option {
	return func(c *Controller) {
		c.ticker = f
	}
}

// WithDistanceFunc replaces the great-circle distance.
func WithDistanceFunc(fn proximity.DistanceFunc) Option {
	return func(c *Controller) {
		c.distance = fn
	}
}

// WithMetrics reports engine activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithStopOnLoopExit controls whether the controller stops itself when the
// notification loop ends on its own (budget exhausted or drained).
//
// Default: true
func WithStopOnLoopExit(stop bool) Option {
	return func(c *Controller) {
		c.stopOnLoopExit = stop
	}
}

// WithShutdownTimeout bounds the stopping sequence after Run's context is
// cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.shutdownTimeout = d
	}
}

// New creates a Controller. Nothing happens until Run is called.
func New(
	source ReminderSource,
	registry geofence.Registry,
	locations location.Source,
	notifier notify.Notifier,
	opts ...Option,
) *Controller {
	c := &Controller{
		source:          source,
		notifier:        notifier,
		subscriber:      location.NewSubscriber(locations),
		radius:          geofence.DefaultRadiusMeters,
		locationCfg:     location.DefaultConfig(),
		loopCfg:         notify.DefaultLoopConfig(),
		ticker:          clock.Real,
		distance:        proximity.Haversine,
		stopOnLoopExit:  true,
		shutdownTimeout: DefaultShutdownTimeout,
		queue:           newEventQueue(),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	var syncOpts []geofence.SynchronizerOption
	loopOpts := []notify.LoopOption{notify.WithTicker(c.ticker)}
	if c.metrics != nil {
		syncOpts = append(syncOpts, geofence.WithRecorder(c.metrics))
		loopOpts = append(loopOpts, notify.WithRecorder(c.metrics))
	}
	c.syncer = geofence.NewSynchronizer(registry, c.radius, syncOpts...)
	c.calc = proximity.NewCalculator(c.radius, proximity.WithDistanceFunc(c.distance))
	c.loop = notify.NewLoop(notifier, c.loopCfg, loopOpts...)

	initial := notify.UnknownStatus()
	c.status.Store(&initial)
	c.state.Store(int32(StateStarting))

	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() RunState {
	return RunState(c.state.Load())
}

// Status returns the most recently published status.
func (c *Controller) Status() notify.Status {
	return *c.status.Load()
}

// Done is closed once the controller reaches StateStopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Deactivate asks the controller to mark the active reminder id completed.
// Unknown or inactive ids are logged and ignored.
// Returns false if the controller has stopped.
func (c *Controller) Deactivate(id string) bool {
	return c.queue.Enqueue(event{kind: eventDeactivate, id: id})
}

// Start restarts the notification loop if it has exited and retries the
// location subscription if it is idle.
// Returns false if the controller has stopped.
func (c *Controller) Start() bool {
	return c.queue.Enqueue(event{kind: eventStart})
}

// Stop asks the controller to stop. Safe to call more than once; only the
// first request while running has any effect. Wait on Done or on Run's
// return for completion.
func (c *Controller) Stop() {
	c.queue.Enqueue(event{kind: eventStop})
}

// Flush blocks until every event enqueued before the call, and every event
// those events caused, has been processed.
//
// Returns ErrStopped if the controller stops first.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !c.queue.Enqueue(event{kind: eventFlush, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the controller and processes events until Stop is requested,
// the notification loop ends (with WithStopOnLoopExit), or ctx is
// cancelled. Cancelling ctx runs the same stopping sequence and returns
// ctx.Err().
//
// CRITICAL: Must be called from exactly ONE goroutine, once.
//
// ERROR HANDLING: failures while processing an event are logged and the
// loop continues.
func (c *Controller) Run(ctx context.Context) error {
	if !c.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.finish()

	if err := c.locationCfg.Validate(); err != nil {
		return &ConfigError{Component: "location", Err: err}
	}
	if err := c.loopCfg.Validate(); err != nil {
		return &ConfigError{Component: "loop", Err: err}
	}

	slog.Info("engine starting",
		"radius_meters", c.radius,
		"tick_budget", c.loopCfg.TickBudget,
		"tick_interval", c.loopCfg.TickInterval,
	)
	c.setState(StateStarting)

	c.establishForeground(ctx)
	c.subscribe(ctx)
	c.cancelObserve = c.source.Observe(ctx, c.onSnapshot)

	// Apply whatever the source emitted synchronously so the first tick
	// never evaluates the placeholder status.
	for {
		ev, ok := c.queue.TryDequeue()
		if !ok {
			break
		}
		if c.process(ctx, ev) {
			slog.Info("engine stopped")
			return nil
		}
	}
	if !c.loopRunning {
		c.startLoop(ctx)
	}

	for {
		ev, ok := c.queue.TryDequeue()
		if ok {
			if c.process(ctx, ev) {
				slog.Info("engine stopped")
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.shutdownTimeout)
			c.stop(stopCtx, "context cancelled")
			cancel()
			return ctx.Err()

		case <-c.queue.Wait():
		}
	}
}

// process handles one event and reports whether Run should return.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (c *Controller) process(ctx context.Context, ev event) bool {
	switch ev.kind {
	case eventReminders:
		c.handleSnapshot(ctx, ev.snapshot)

	case eventFix:
		c.handleFix(ev.fix)

	case eventDeactivate:
		c.handleDeactivate(ctx, ev.id)

	case eventStart:
		c.handleStart(ctx)

	case eventLoopDone:
		return c.handleLoopDone(ctx, ev.gen, ev.exit)

	case eventStop:
		c.stop(ctx, "stop requested")
		return true

	case eventFlush:
		// Events caused by earlier events are already queued; let them
		// go first.
		if c.queue.Len() > 0 && c.queue.Enqueue(ev) {
			return false
		}
		close(ev.done)

	default:
		slog.Error("unknown event", "kind", ev.kind)
	}
	return false
}

func (c *Controller) handleSnapshot(ctx context.Context, snap reminder.Snapshot) {
	if c.State() == StateStarting {
		c.setState(StateRunning)
		slog.Info("engine running")
	}

	c.known = true
	if snap.Err != nil {
		slog.Warn("reminder source failed; treating active set as empty", "error", snap.Err)
		c.degraded = true
		c.active = nil
	} else {
		c.degraded = false
		c.active = reminder.FilterActive(snap.Reminders)
	}

	slog.Debug("reminders emitted",
		"total", len(snap.Reminders),
		"active", len(c.active),
		"degraded", c.degraded,
	)

	c.resync(ctx)
	c.publish()
}

// resync rebuilds the registry when the active geofences differ from the
// last successful resync.
func (c *Controller) resync(ctx context.Context) {
	fp := geofence.Fingerprint(geofence.ForReminders(c.active, c.radius))
	if c.synced && fp == c.fingerprint {
		return
	}

	err := c.syncer.Resync(ctx, c.active)
	c.fingerprint = fp
	c.synced = err == nil
	if err != nil {
		slog.Warn("geofence resync incomplete; retrying on next change", "error", err)
	}
}

func (c *Controller) handleFix(fix location.Fix) {
	c.metrics.FixReceived()
	c.fix = &fix
	slog.Debug("location fix", "lat", fix.Latitude, "lng", fix.Longitude)
	c.publish()
}

func (c *Controller) handleDeactivate(ctx context.Context, id string) {
	if _, ok := reminder.Find(c.active, id); !ok {
		slog.Info("deactivate ignored: not an active reminder", "id", id)
		return
	}
	if err := c.source.Complete(ctx, id); err != nil {
		slog.Error("deactivate failed", "id", id, "error", err)
		return
	}
	c.metrics.ReminderDeactivated()
	slog.Info("reminder deactivated", "id", id)
}

func (c *Controller) handleStart(ctx context.Context) {
	if !c.loopRunning {
		slog.Info("restarting notification loop")
		c.startLoop(ctx)
	}
	if !c.subscriber.Subscribed() {
		c.subscribe(ctx)
	}
}

func (c *Controller) handleLoopDone(ctx context.Context, gen uint64, exit notify.Exit) bool {
	if gen != c.loopGen {
		slog.Debug("stale loop completion ignored", "gen", gen, "current", c.loopGen)
		return false
	}
	c.loopRunning = false
	slog.Info("notification loop finished", "reason", exit.String(), "gen", gen)

	if !c.stopOnLoopExit || exit == notify.ExitCancelled {
		return false
	}
	c.stop(ctx, "notification loop "+exit.String())
	return true
}

// publish recomputes proximity and swaps in a new immutable status.
func (c *Controller) publish() {
	active := -1
	if c.known {
		active = len(c.active)
	}
	s := notify.Status{
		Active:    active,
		Degraded:  c.degraded,
		Proximity: c.calc.Recompute(c.active, c.fix),
	}
	c.status.Store(&s)
	c.metrics.SetActiveReminders(max(active, 0))
}

func (c *Controller) onSnapshot(snap reminder.Snapshot) {
	c.queue.Enqueue(event{kind: eventReminders, snapshot: snap})
}

func (c *Controller) onFix(fix location.Fix) {
	c.queue.Enqueue(event{kind: eventFix, fix: fix})
}

func (c *Controller) subscribe(ctx context.Context) {
	if err := c.subscriber.Subscribe(ctx, c.locationCfg, c.onFix); err != nil {
		slog.Warn("location subscription failed", "error", err)
	}
}

// establishForeground keeps the process visibly alive, falling back to a
// placeholder notification when the notifier has no foreground mode.
func (c *Controller) establishForeground(ctx context.Context) {
	var err error
	if fg, ok := c.notifier.(notify.Foregrounder); ok {
		err = fg.Foreground(ctx, notify.StatusChannel, notify.Loading())
	} else {
		err = c.notifier.Notify(ctx, notify.StatusChannel, notify.Loading())
	}
	if err != nil {
		slog.Warn("foreground presence failed", "error", err)
	}
}

func (c *Controller) startLoop(ctx context.Context) {
	if c.loopCancel != nil {
		c.loopCancel()
	}
	c.loopGen++
	gen := c.loopGen
	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel
	c.loopRunning = true

	c.loopWG.Add(1)
	go func() {
		defer c.loopWG.Done()
		exit, err := c.loop.Run(loopCtx, c.Status)
		if err != nil {
			slog.Error("notification loop failed", "error", err)
		}
		c.queue.Enqueue(event{kind: eventLoopDone, gen: gen, exit: exit})
	}()
}

func (c *Controller) stopLoop() {
	if c.loopCancel != nil {
		c.loopCancel()
	}
	c.loopWG.Wait()
	c.loopRunning = false
}

// stop runs the stopping sequence: every active reminder is completed
// through the source and its geofence removed, then the loop is cancelled.
// Location release happens in finish.
func (c *Controller) stop(ctx context.Context, reason string) {
	if s := c.State(); s == StateStopping || s == StateStopped {
		return
	}
	c.setState(StateStopping)
	slog.Info("engine stopping", "reason", reason, "active", len(c.active))

	for _, r := range c.active {
		if err := c.source.Complete(ctx, r.ID); err != nil {
			slog.Error("complete on stop failed", "id", r.ID, "error", err)
			continue
		}
		c.metrics.ReminderDeactivated()
	}
	c.active = nil
	c.resync(ctx)
	c.publish()

	c.stopLoop()
}

// finish releases everything Run acquired. Deferred by Run so it runs on
// every exit path, exactly once.
func (c *Controller) finish() {
	c.stopLoop()

	if c.cancelObserve != nil {
		c.cancelObserve()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer cancel()
	if err := c.subscriber.Unsubscribe(ctx); err != nil {
		slog.Warn("location release failed", "error", err)
	}

	c.queue.Close()
	c.setState(StateStopped)
	close(c.done)
}

func (c *Controller) setState(s RunState) {
	c.state.Store(int32(s))
	c.metrics.SetEngineState(int(s))
}
