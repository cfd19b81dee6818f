// Package vitals holds the per-metric-family aggregators. Each one consumes
// performance entries as they arrive, snapshots its value on demand, and is
// reset at soft-navigation boundaries.
package vitals

import (
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

const (
	// A shift starts a new session window when it lands 1s after the latest
	// shift in the window, or when the window already spans 5s.
	clsGapMs  = 1000
	clsSpanMs = 5000
)

// CLSData is the reported cumulative layout shift.
type CLSData struct {
	Value        float64            `json:"value"`
	LargestShift *LargestShift      `json:"largestEntry,omitempty"`
	Sources      []perf.ShiftSource `json:"sources,omitempty"`
}

// LargestShift attributes the single biggest shift within the reported
// window.
type LargestShift struct {
	StartTime float64 `json:"startTime"`
	Value     float64 `json:"value"`
}

// CLS scores layout shifts with session windowing. The reported value is
// the maximum window value ever reached: a later window with smaller shifts
// never reduces the score.
type CLS struct {
	mu           sync.Mutex
	window       []perf.Entry
	sessionValue float64
	best         float64
	bestWindow   []perf.Entry
	maxSources   int
}

func NewCLS(maxSources int) *CLS {
	if maxSources <= 0 {
		maxSources = 5
	}
	return &CLS{maxSources: maxSources}
}

// ProcessEntry folds one layout-shift entry into the current window.
// Shifts the browser flags as user-initiated are excluded.
func (c *CLS) ProcessEntry(e perf.Entry) {
	if e.HadRecentInput {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.window) > 0 {
		latest := c.window[len(c.window)-1]
		first := c.window[0]
		if e.StartTime-latest.StartTime >= clsGapMs || e.StartTime-first.StartTime >= clsSpanMs {
			c.window = nil
			c.sessionValue = 0
		}
	}
	c.sessionValue += e.Value
	c.window = append(c.window, e)
	if c.sessionValue > c.best {
		c.best = c.sessionValue
		c.bestWindow = append([]perf.Entry(nil), c.window...)
	}
}

// Data returns the best window's score with attribution, or nil when no
// qualifying shift has been seen.
func (c *CLS) Data() *CLSData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bestWindow) == 0 {
		return nil
	}

	largest := c.bestWindow[0]
	for _, e := range c.bestWindow[1:] {
		if e.Value > largest.Value {
			largest = e
		}
	}

	sources := largest.Sources
	if len(sources) > c.maxSources {
		sources = sources[:c.maxSources]
	}
	return &CLSData{
		Value:        c.best,
		LargestShift: &LargestShift{StartTime: largest.StartTime, Value: largest.Value},
		Sources:      append([]perf.ShiftSource(nil), sources...),
	}
}

// Reset clears the window and the best-seen value for a new page view.
func (c *CLS) Reset() {
	c.mu.Lock()
	c.window = nil
	c.sessionValue = 0
	c.best = 0
	c.bestWindow = nil
	c.mu.Unlock()
}
