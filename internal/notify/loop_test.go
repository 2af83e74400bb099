package notify_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/proximity"
	"github.com/roach88/georemind/internal/reminder"
	"github.com/roach88/georemind/internal/testutil"
)

type countingRecorder struct {
	mu      sync.Mutex
	sent    int
	failed  int
	skipped int
	exits   []string
}

func (r *countingRecorder) NotificationSent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
}

func (r *countingRecorder) NotificationFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *countingRecorder) TickSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *countingRecorder) LoopExited(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, reason)
}

func nearestStatus(active int, title string, distance float64) notify.Status {
	r := reminder.Reminder{ID: "r-" + title, Title: title}
	return notify.Status{
		Active: active,
		Proximity: proximity.State{
			Nearest:  &r,
			Distance: distance,
			Valid:    true,
		},
	}
}

// scripted returns the statuses in order, repeating the last one.
func scripted(statuses ...notify.Status) func() notify.Status {
	i := 0
	return func() notify.Status {
		s := statuses[min(i, len(statuses)-1)]
		i++
		return s
	}
}

// runPumped runs loop and delivers ticks until the loop stops its ticker.
func runPumped(t *testing.T, ctx context.Context, loop *notify.Loop, tickers *testutil.ManualTickers, status func() notify.Status) notify.Exit {
	t.Helper()

	type result struct {
		exit notify.Exit
		err  error
	}
	done := make(chan result, 1)
	go func() {
		exit, err := loop.Run(ctx, status)
		done <- result{exit, err}
	}()

	ticker := tickers.Await(t)
	for ticker.Tick() {
	}

	r := <-done
	require.NoError(t, r.err)
	return r.exit
}

func newLoop(n notify.Notifier, cfg notify.LoopConfig, rec notify.Recorder) (*notify.Loop, *testutil.ManualTickers) {
	tickers := testutil.NewManualTickers()
	return notify.NewLoop(n, cfg, notify.WithTicker(tickers.Factory), notify.WithRecorder(rec)), tickers
}

func TestDefaultLoopConfig(t *testing.T) {
	cfg := notify.DefaultLoopConfig()

	assert.Equal(t, 500, cfg.TickBudget)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 100, cfg.MaxActive)
	assert.NoError(t, cfg.Validate())
}

func TestLoopConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*notify.LoopConfig)
	}{
		{"zero budget", func(c *notify.LoopConfig) { c.TickBudget = 0 }},
		{"zero interval", func(c *notify.LoopConfig) { c.TickInterval = 0 }},
		{"negative max active", func(c *notify.LoopConfig) { c.MaxActive = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := notify.DefaultLoopConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoop_InvalidConfigFails(t *testing.T) {
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 0
	loop := notify.NewLoop(testutil.NewRecordingNotifier(), cfg)

	_, err := loop.Run(context.Background(), notify.UnknownStatus)
	require.Error(t, err)
}

func TestLoop_ExhaustsBudget(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	rec := &countingRecorder{}
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 5
	loop, tickers := newLoop(n, cfg, rec)

	exit := runPumped(t, context.Background(), loop, tickers, scripted(nearestStatus(3, "Milk", 0.2)))

	assert.Equal(t, notify.ExitBudget, exit)
	require.Len(t, n.Notifications(), 5)
	for _, got := range n.Notifications() {
		assert.Equal(t, notify.StatusChannel, got.Channel)
		assert.Equal(t, "Milk · after · 0.20 km.", got.Content.Text())
	}
	assert.Equal(t, 5, rec.sent)
	assert.Equal(t, []string{"budget"}, rec.exits)
}

func TestLoop_EarlyExitWhenDrained(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	rec := &countingRecorder{}
	loop, tickers := newLoop(n, notify.DefaultLoopConfig(), rec)

	status := scripted(
		nearestStatus(3, "Milk", 0),
		nearestStatus(3, "Milk", 0),
		notify.Status{Active: 0},
		nearestStatus(3, "Milk", 0),
	)
	exit := runPumped(t, context.Background(), loop, tickers, status)

	assert.Equal(t, notify.ExitDrained, exit)
	assert.Len(t, n.Notifications(), 2)
	assert.Equal(t, []string{"drained"}, rec.exits)
}

func TestLoop_SkipsUnknownAndAboveMaxActive(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	rec := &countingRecorder{}
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 4
	loop, tickers := newLoop(n, cfg, rec)

	status := scripted(
		notify.UnknownStatus(),
		nearestStatus(101, "Milk", 0),
		nearestStatus(100, "Bread", 1.5),
		nearestStatus(1, "Eggs", 0),
	)
	exit := runPumped(t, context.Background(), loop, tickers, status)

	assert.Equal(t, notify.ExitBudget, exit)
	assert.Equal(t, []string{"Bread · after · 1.50 km.", "Eggs · after · 0.00 km."}, n.Texts())
	assert.Equal(t, 2, rec.skipped)
}

func TestLoop_LoadingPlaceholderBeforeNearestKnown(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 1
	loop, tickers := newLoop(n, cfg, nil)

	exit := runPumped(t, context.Background(), loop, tickers, scripted(notify.Status{Active: 2}))

	assert.Equal(t, notify.ExitBudget, exit)
	assert.Equal(t, []string{notify.LoadingText}, n.Texts())
}

func TestLoop_DegradedShowsPlaceholderAndKeepsTicking(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 3
	loop, tickers := newLoop(n, cfg, nil)

	exit := runPumped(t, context.Background(), loop, tickers, scripted(notify.Status{Active: 0, Degraded: true}))

	assert.Equal(t, notify.ExitBudget, exit)
	assert.Equal(t, []string{notify.LoadingText, notify.LoadingText, notify.LoadingText}, n.Texts())
}

func TestLoop_CancelWhileWaitingIsCleanExit(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	rec := &countingRecorder{}
	loop, tickers := newLoop(n, notify.DefaultLoopConfig(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		exit notify.Exit
		err  error
	}
	done := make(chan result, 1)
	go func() {
		exit, err := loop.Run(ctx, scripted(nearestStatus(1, "Milk", 0)))
		done <- result{exit, err}
	}()

	ticker := tickers.Await(t)
	require.True(t, ticker.Tick())
	require.Eventually(t, func() bool { return len(n.Notifications()) == 2 }, time.Second, time.Millisecond)
	cancel()

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, notify.ExitCancelled, r.exit)
	assert.True(t, ticker.Stopped())
	assert.Len(t, n.Notifications(), 2)
	assert.Equal(t, []string{"cancelled"}, rec.exits)
}

func TestLoop_AlreadyCancelled(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	loop, _ := newLoop(n, notify.DefaultLoopConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exit, err := loop.Run(ctx, scripted(nearestStatus(1, "Milk", 0)))
	require.NoError(t, err)
	assert.Equal(t, notify.ExitCancelled, exit)
	assert.Empty(t, n.Notifications())
}

func TestLoop_NotifierFailureIsNotFatal(t *testing.T) {
	n := testutil.NewRecordingNotifier()
	n.FailWith(errors.New("presentation unavailable"))
	rec := &countingRecorder{}
	cfg := notify.DefaultLoopConfig()
	cfg.TickBudget = 3
	loop, tickers := newLoop(n, cfg, rec)

	exit := runPumped(t, context.Background(), loop, tickers, scripted(nearestStatus(1, "Milk", 0)))

	assert.Equal(t, notify.ExitBudget, exit)
	assert.Len(t, n.Notifications(), 3)
	assert.Equal(t, 3, rec.failed)
	assert.Equal(t, 0, rec.sent)
}

func TestExit_String(t *testing.T) {
	assert.Equal(t, "budget", notify.ExitBudget.String())
	assert.Equal(t, "drained", notify.ExitDrained.String())
	assert.Equal(t, "cancelled", notify.ExitCancelled.String())
	assert.Equal(t, "Exit(9)", notify.Exit(9).String())
}

func TestContent_Text(t *testing.T) {
	assert.Equal(t, "Milk · after · 0.20 km.", notify.Content{Title: "Milk", Distance: 0.2}.Text())
	assert.Equal(t, notify.LoadingText, notify.Loading().Text())
	// "e" + combining acute renders the same as the precomposed form.
	assert.Equal(t, "Caf\u00e9 · after · 1.00 km.", notify.Content{Title: "Cafe\u0301", Distance: 1}.Text())
}

func TestContentFor(t *testing.T) {
	assert.Equal(t, notify.Loading(), notify.ContentFor(notify.Status{Active: 1}))
	assert.Equal(t, notify.Loading(), notify.ContentFor(notify.Status{Degraded: true}))

	r := reminder.Reminder{ID: "r1", Description: "Pick up parcel"}
	s := notify.Status{Active: 1, Proximity: proximity.State{Nearest: &r, Distance: 0.25, Valid: true}}
	assert.Equal(t, notify.Content{Title: "Pick up parcel", Distance: 0.25}, notify.ContentFor(s))
}

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewWriterNotifier(&buf)

	require.NoError(t, n.Notify(context.Background(), notify.StatusChannel, notify.Content{Title: "Milk", Distance: 0.2}))
	require.NoError(t, n.Notify(context.Background(), notify.StatusChannel, notify.Loading()))

	assert.Equal(t, "[georemind.status] Milk · after · 0.20 km.\n[georemind.status] Looking for the nearest reminder…\n", buf.String())
}
