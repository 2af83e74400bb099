package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualTicker_TickBlocksUntilReceived(t *testing.T) {
	ticker := NewManualTicker(time.Second)
	received := make(chan struct{})

	go func() {
		<-ticker.C()
		close(received)
	}()

	require.True(t, ticker.Tick())
	<-received
}

func TestManualTicker_TickAfterStop(t *testing.T) {
	ticker := NewManualTicker(time.Second)
	ticker.Stop()
	ticker.Stop()

	assert.True(t, ticker.Stopped())
	assert.False(t, ticker.Tick())
	assert.Equal(t, 0, ticker.TickN(3))
}

func TestManualTickers_AwaitReturnsCreatedTicker(t *testing.T) {
	tickers := NewManualTickers()

	created := tickers.Factory(250 * time.Millisecond)
	got := tickers.Await(t)

	assert.Same(t, created, got)
	assert.Equal(t, 250*time.Millisecond, got.Interval())
	assert.Equal(t, 1, tickers.Created())
}

func TestManualTickers_LatestAndNext(t *testing.T) {
	tickers := NewManualTickers()
	assert.Nil(t, tickers.Latest())

	_, ok := tickers.Next(time.Millisecond)
	assert.False(t, ok)

	tickers.Factory(time.Second)
	second := tickers.Factory(2 * time.Second)

	assert.Same(t, second, tickers.Latest())
	first, ok := tickers.Next(time.Second)
	require.True(t, ok)
	assert.Equal(t, time.Second, first.Interval())
}
