package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/roach88/georemind/internal/clock"
)

// ManualTicker is a clock.Ticker whose ticks are delivered explicitly.
//
// Tick blocks until the consumer receives the tick, so a test that calls
// Tick knows the loop has advanced past its wait.
//
// Thread-safety: All methods are safe for concurrent use.
type ManualTicker struct {
	interval time.Duration
	c        chan time.Time
	stopped  chan struct{}
	once     sync.Once
}

// NewManualTicker creates a ManualTicker that reports interval d.
func NewManualTicker(d time.Duration) *ManualTicker {
	return &ManualTicker{
		interval: d,
		c:        make(chan time.Time),
		stopped:  make(chan struct{}),
	}
}

// C implements clock.Ticker.
func (t *ManualTicker) C() <-chan time.Time {
	return t.c
}

// Stop implements clock.Ticker. Safe to call more than once.
func (t *ManualTicker) Stop() {
	t.once.Do(func() {
		close(t.stopped)
	})
}

// Interval returns the interval the ticker was created with.
func (t *ManualTicker) Interval() time.Duration {
	return t.interval
}

// Stopped reports whether Stop has been called.
func (t *ManualTicker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// Tick delivers one tick. Returns false, without delivering, once the
// ticker is stopped.
func (t *ManualTicker) Tick() bool {
	select {
	case t.c <- time.Time{}:
		return true
	case <-t.stopped:
		return false
	}
}

// TickN delivers up to n ticks and returns how many were received.
func (t *ManualTicker) TickN(n int) int {
	for i := 0; i < n; i++ {
		if !t.Tick() {
			return i
		}
	}
	return n
}

// ManualTickers hands out ManualTickers and remembers them.
//
// Pass Factory wherever a clock.TickerFactory is expected.
type ManualTickers struct {
	mu      sync.Mutex
	created []*ManualTicker
	next    chan *ManualTicker
}

// NewManualTickers creates an empty ManualTickers.
func NewManualTickers() *ManualTickers {
	return &ManualTickers{next: make(chan *ManualTicker, 64)}
}

// Factory implements clock.TickerFactory.
func (m *ManualTickers) Factory(d time.Duration) clock.Ticker {
	t := NewManualTicker(d)
	m.mu.Lock()
	m.created = append(m.created, t)
	m.mu.Unlock()
	select {
	case m.next <- t:
	default:
	}
	return t
}

// Created returns the number of tickers created so far.
func (m *ManualTickers) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

// Next returns the next ticker created after the previous Next or Await,
// or false if none appears within timeout.
func (m *ManualTickers) Next(timeout time.Duration) (*ManualTicker, bool) {
	select {
	case t := <-m.next:
		return t, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Latest returns the most recently created ticker, or nil.
func (m *ManualTickers) Latest() *ManualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.created) == 0 {
		return nil
	}
	return m.created[len(m.created)-1]
}

// Await returns the next ticker created after the previous Next or Await,
// failing the test if none appears within five seconds.
func (m *ManualTickers) Await(tb testing.TB) *ManualTicker {
	tb.Helper()
	t, ok := m.Next(5 * time.Second)
	if !ok {
		tb.Fatalf("no ticker created")
	}
	return t
}
