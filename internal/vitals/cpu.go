package vitals

import (
	"math"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// CPUData summarizes main-thread long tasks for one page view.
type CPUData struct {
	Count           int `json:"count"`
	TotalDuration   int `json:"totalDuration"`
	MedianDuration  int `json:"medianDuration"`
	LongestDuration int `json:"longestDuration"`
}

// CPU aggregates long-task entries. Durations feed an HDR histogram so the
// median stays cheap regardless of how busy the page was.
type CPU struct {
	mu      sync.Mutex
	hist    *hdrhistogram.Histogram
	count   int
	total   float64
	longest float64
}

func NewCPU() *CPU {
	// Long tasks are >= 50ms by definition; track up to 10 minutes with
	// 3 significant figures.
	return &CPU{hist: hdrhistogram.New(1, 600_000, 3)}
}

func (c *CPU) ProcessEntry(e perf.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.total += e.Duration
	if e.Duration > c.longest {
		c.longest = e.Duration
	}
	ms := int64(e.Duration)
	if ms < c.hist.LowestTrackableValue() {
		ms = c.hist.LowestTrackableValue()
	}
	if ms > c.hist.HighestTrackableValue() {
		ms = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(ms)
}

func (c *CPU) Data() *CPUData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return nil
	}
	return &CPUData{
		Count:           c.count,
		TotalDuration:   int(math.Floor(c.total)),
		MedianDuration:  int(c.hist.ValueAtQuantile(50)),
		LongestDuration: int(math.Floor(c.longest)),
	}
}

func (c *CPU) Reset() {
	c.mu.Lock()
	c.hist.Reset()
	c.count = 0
	c.total = 0
	c.longest = 0
	c.mu.Unlock()
}
