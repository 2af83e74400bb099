package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/roach88/georemind/internal/config"
	"github.com/roach88/georemind/internal/engine"
	"github.com/roach88/georemind/internal/geofence"
	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/metrics"
	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/proximity"
	"github.com/roach88/georemind/internal/reminder"
	"github.com/roach88/georemind/internal/store"
	"github.com/roach88/georemind/internal/testutil"
)

// ErrNotSettled is returned when the controller does not finish reacting
// to a step within SettleTimeout.
var ErrNotSettled = errors.New("controller did not settle")

// SettleTimeout bounds how long a step may take to settle.
const SettleTimeout = 5 * time.Second

// metersPerDegree converts north offsets into latitude.
const metersPerDegree = proximity.EarthRadiusMeters * math.Pi / 180

// runner drives one controller through a scenario.
type runner struct {
	scenario  *Scenario
	store     *store.Store
	source    *switchableSource
	registry  *geofence.MemoryRegistry
	locations *testutil.FakeLocationSource
	notifier  *testutil.RecordingNotifier
	tickers   *testutil.ManualTickers
	metrics   *metrics.Metrics
	ctrl      *engine.Controller

	budget     int
	stopOnExit bool

	// evaluations made by the current loop, and whether it has exited.
	loopEvals int
	loopEnded bool

	// notifications already attributed to earlier steps.
	notified int

	runErr  error
	runDone chan struct{}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database. The returned error
// is reserved for scenarios that cannot run at all; expectation mismatches
// and failed store operations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := config.Default()
	scenario.Config.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config overrides: %w", err)
	}

	r := &runner{
		scenario:   scenario,
		store:      st,
		source:     newSwitchableSource(st),
		registry:   geofence.NewMemoryRegistry(),
		locations:  testutil.NewFakeLocationSource(),
		notifier:   testutil.NewRecordingNotifier(),
		tickers:    testutil.NewManualTickers(),
		metrics:    metrics.New(prometheus.NewRegistry()),
		budget:     cfg.Notifications.TickBudget,
		stopOnExit: cfg.Notifications.StopOnExit,
		runDone:    make(chan struct{}),
	}
	if scenario.PermissionDenied {
		r.locations.SetPermission(false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, spec := range scenario.Reminders {
		if err := st.Save(ctx, r.reminder(spec)); err != nil {
			return nil, fmt.Errorf("failed to seed reminders: %w", err)
		}
	}

	opts := append(cfg.EngineOptions(),
		engine.WithTicker(r.tickers.Factory),
		engine.WithMetrics(r.metrics),
	)
	r.ctrl = engine.New(r.source, r.registry, r.locations, r.notifier, opts...)

	go func() {
		r.runErr = r.ctrl.Run(ctx)
		close(r.runDone)
	}()
	defer r.shutdown(cancel)

	if err := r.startup(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	r.record(ctx, result, 0, "start", nil)

	for i, step := range scenario.Steps {
		err := r.execute(ctx, step)
		if errors.Is(err, ErrNotSettled) {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.label(), err)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): %v", i+1, step.label(), err))
		}
		r.record(ctx, result, i+1, step.label(), step.Expect)
	}

	return result, nil
}

func (o Overrides) apply(cfg *config.Config) {
	if o.RadiusMeters != nil {
		cfg.Geofence.RadiusMeters = *o.RadiusMeters
	}
	if o.TickBudget != nil {
		cfg.Notifications.TickBudget = *o.TickBudget
	}
	if o.MaxActive != nil {
		cfg.Notifications.MaxActive = *o.MaxActive
	}
	if o.StopOnExit != nil {
		cfg.Notifications.StopOnExit = *o.StopOnExit
	}
}

func (r *runner) reminder(spec ReminderSpec) reminder.Reminder {
	lat, lng := r.position(spec.North)
	if spec.Latitude != nil && spec.Longitude != nil {
		lat, lng = *spec.Latitude, *spec.Longitude
	}
	return reminder.Reminder{
		ID:          spec.ID,
		Title:       spec.Title,
		Description: spec.Description,
		Latitude:    lat,
		Longitude:   lng,
		Completed:   spec.Completed,
	}
}

func (r *runner) position(north float64) (lat, lng float64) {
	return r.scenario.Origin.Latitude + north/metersPerDegree, r.scenario.Origin.Longitude
}

// startup waits for the initial emission and the loop's first evaluation.
func (r *runner) startup(ctx context.Context) error {
	if err := r.ctrl.Flush(ctx); err != nil {
		if r.stopped() && r.runErr != nil {
			return fmt.Errorf("controller failed to start: %w", r.runErr)
		}
		return fmt.Errorf("controller failed to start: %w", err)
	}
	if err := r.await(func() bool { return r.evaluations() >= 1 }); err != nil {
		return fmt.Errorf("first evaluation: %w", err)
	}
	r.loopEvals = 1
	return r.afterEvaluation(ctx, 0)
}

func (r *runner) execute(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionFix:
		lat, lng := r.position(step.North)
		if step.Latitude != nil && step.Longitude != nil {
			lat, lng = *step.Latitude, *step.Longitude
		}
		// Dropped when there is no subscription.
		r.locations.Deliver(location.Fix{Latitude: lat, Longitude: lng})
		return r.settle(ctx)

	case ActionTick:
		count := max(step.Count, 1)
		for i := 0; i < count; i++ {
			if err := r.tick(ctx); err != nil {
				return err
			}
		}
		return nil

	case ActionDeactivate:
		if !r.ctrl.Deactivate(step.ID) {
			return errors.New("controller has stopped")
		}
		return r.settle(ctx)

	case ActionAdd:
		if err := r.store.Save(ctx, r.reminder(*step.Reminder)); err != nil {
			return errors.Join(err, r.settle(ctx))
		}
		return r.settle(ctx)

	case ActionComplete:
		return r.mutate(ctx, r.store.Complete(ctx, step.ID))

	case ActionActivate:
		return r.mutate(ctx, r.store.Activate(ctx, step.ID))

	case ActionDelete:
		return r.mutate(ctx, r.store.Delete(ctx, step.ID))

	case ActionClearCompleted:
		_, err := r.store.ClearCompleted(ctx)
		return r.mutate(ctx, err)

	case ActionDeleteAll:
		_, err := r.store.DeleteAll(ctx)
		return r.mutate(ctx, err)

	case ActionFailSource:
		msg := step.Error
		if msg == "" {
			msg = "reminder stream failed"
		}
		r.source.Fail(ctx, errors.New(msg))
		return r.settle(ctx)

	case ActionRecoverSource:
		r.source.Recover(ctx)
		return r.settle(ctx)

	case ActionGrantPermission:
		r.locations.SetPermission(true)
		return nil

	case ActionStart:
		return r.start(ctx)

	case ActionStop:
		r.ctrl.Stop()
		return r.awaitStopped()

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// mutate settles after a store mutation, keeping the mutation's error.
func (r *runner) mutate(ctx context.Context, err error) error {
	if settleErr := r.settle(ctx); settleErr != nil {
		return settleErr
	}
	return err
}

func (r *runner) tick(ctx context.Context) error {
	if r.stopped() {
		return errors.New("controller has stopped")
	}
	if r.loopEnded {
		return errors.New("notification loop has exited")
	}
	ticker := r.tickers.Latest()
	if ticker == nil {
		return errors.New("no notification loop ticker")
	}

	evals, exits := r.evaluations(), r.exits()
	if !ticker.Tick() {
		return errors.New("notification loop ticker stopped")
	}
	if err := r.await(func() bool { return r.evaluations() > evals }); err != nil {
		return err
	}
	r.loopEvals++
	return r.afterEvaluation(ctx, exits)
}

// afterEvaluation waits for the consequences of a loop exit, if the last
// evaluation caused one.
func (r *runner) afterEvaluation(ctx context.Context, exitsBefore float64) error {
	if r.loopEvals >= r.budget {
		// No wait follows the final tick; the exit is immediate.
		if err := r.await(func() bool { return r.exits() > exitsBefore }); err != nil {
			return err
		}
	}
	if r.exits() == exitsBefore {
		return nil
	}

	r.loopEnded = true
	if r.stopOnExit {
		return r.awaitStopped()
	}
	return r.settle(ctx)
}

func (r *runner) start(ctx context.Context) error {
	if r.stopped() {
		return errors.New("controller has stopped")
	}
	if !r.loopEnded {
		r.ctrl.Start()
		return r.settle(ctx)
	}

	created := r.tickers.Created()
	evals, exits := r.evaluations(), r.exits()
	// Start is a no-op until the controller has seen the old loop exit.
	err := r.await(func() bool {
		r.ctrl.Start()
		_ = r.ctrl.Flush(ctx)
		return r.tickers.Created() > created
	})
	if err != nil {
		return err
	}
	if err := r.await(func() bool { return r.evaluations() > evals }); err != nil {
		return err
	}
	r.loopEnded = false
	r.loopEvals = 1
	if err := r.afterEvaluation(ctx, exits); err != nil {
		return err
	}
	return r.settle(ctx)
}

// settle waits until every event caused so far has been processed.
func (r *runner) settle(ctx context.Context) error {
	if r.stopped() {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(ctx, SettleTimeout)
	defer cancel()
	err := r.ctrl.Flush(flushCtx)
	switch {
	case err == nil, errors.Is(err, engine.ErrStopped):
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrNotSettled
	default:
		return err
	}
}

func (r *runner) awaitStopped() error {
	select {
	case <-r.runDone:
		return nil
	case <-time.After(SettleTimeout):
		return ErrNotSettled
	}
}

func (r *runner) stopped() bool {
	select {
	case <-r.runDone:
		return true
	default:
		return false
	}
}

func (r *runner) await(cond func() bool) error {
	deadline := time.Now().Add(SettleTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			return ErrNotSettled
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// evaluations counts ticks the loop has acted on.
func (r *runner) evaluations() float64 {
	return promtest.ToFloat64(r.metrics.NotificationsSent) +
		promtest.ToFloat64(r.metrics.NotificationFailures) +
		promtest.ToFloat64(r.metrics.TicksSkipped) +
		promtest.ToFloat64(r.metrics.LoopExits.WithLabelValues(notify.ExitDrained.String()))
}

func (r *runner) exits() float64 {
	var n float64
	for _, exit := range []notify.Exit{notify.ExitBudget, notify.ExitDrained, notify.ExitCancelled} {
		n += promtest.ToFloat64(r.metrics.LoopExits.WithLabelValues(exit.String()))
	}
	return n
}

// record appends the settled observation to the trace and checks expect.
func (r *runner) record(ctx context.Context, result *Result, index int, label string, expect *Expect) {
	o := r.observe(ctx)
	result.AddTrace(index, label, o)
	for _, problem := range expect.check(o) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", index, label, problem))
	}
}

func (r *runner) observe(ctx context.Context) Observation {
	status := r.ctrl.Status()
	o := Observation{
		State:     r.ctrl.State().String(),
		Active:    status.Active,
		Degraded:  status.Degraded,
		Geofences: r.registry.IDs(),
	}
	if status.Proximity.Valid && status.Proximity.Nearest != nil {
		o.Nearest = status.Proximity.Nearest.ID
		o.Distance = status.Proximity.Distance
	}
	if stats, err := r.store.Stats(ctx); err == nil {
		o.Stored = stats
	}

	all := r.notifier.Notifications()
	if len(all) > r.notified {
		o.Notification = all[len(all)-1].Content.Text()
	}
	r.notified = len(all)
	return o
}

// shutdown stops the controller if the scenario left it running.
func (r *runner) shutdown(cancel context.CancelFunc) {
	r.ctrl.Stop()
	if r.awaitStopped() != nil {
		cancel()
		<-r.runDone
	}
}
