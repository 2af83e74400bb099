// Package clock provides the cancellable periodic timer used by the
// notification loop.
//
// Production code uses the wall-clock ticker returned by Real. Tests inject
// testutil.ManualTicker so tick delivery is driven explicitly.
package clock

import "time"

// Ticker delivers ticks on C until Stop is called.
//
// Stop does not close C; callers select on their own stop signal
// (usually ctx.Done()) alongside C.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

// Real is the TickerFactory backed by time.NewTicker.
func Real(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }

func (r *realTicker) Stop() { r.t.Stop() }
