package perf

import (
	"sync"
	"time"
)

// Clock supplies the current time in milliseconds, monotonic within one
// page view.
type Clock interface {
	Now() float64
}

// WallClock measures milliseconds since construction using the runtime's
// monotonic clock.
type WallClock struct {
	origin time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

func (c *WallClock) Now() float64 {
	return float64(time.Since(c.origin)) / float64(time.Millisecond)
}

// ManualClock is advanced explicitly. Replay drives it from trace
// timestamps; tests drive it directly.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by ms. Negative deltas are ignored so the
// clock stays monotonic.
func (c *ManualClock) Advance(ms float64) {
	if ms < 0 {
		return
	}
	c.mu.Lock()
	c.now += ms
	c.mu.Unlock()
}

// Set moves the clock to an absolute time, never backwards.
func (c *ManualClock) Set(ms float64) {
	c.mu.Lock()
	if ms > c.now {
		c.now = ms
	}
	c.mu.Unlock()
}
