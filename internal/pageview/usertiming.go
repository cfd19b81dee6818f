package pageview

import (
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// Timeline records user-timing marks and measures. Two implementations
// share the surface: one delegates to the host's native mark/measure
// primitives and collects the resulting entries from the observer stream,
// the other keeps an in-memory list for environments without the native
// API. The choice is made once at initialization.
type Timeline interface {
	Mark(name string)
	Measure(name, startMark, endMark string)
	Entries() []perf.Entry
	Reset()
}

// MemoryTimeline is the polyfill implementation: marks and measures live
// in an in-memory list stamped from the engine clock.
type MemoryTimeline struct {
	mu      sync.Mutex
	clock   perf.Clock
	marks   map[string]float64
	entries []perf.Entry
}

func NewMemoryTimeline(clock perf.Clock) *MemoryTimeline {
	return &MemoryTimeline{clock: clock, marks: make(map[string]float64)}
}

func (t *MemoryTimeline) Mark(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.marks[name] = now
	t.entries = append(t.entries, perf.Entry{Type: perf.EntryMark, Name: name, StartTime: now})
}

// Measure records a measure between two named marks. A missing start mark
// means time zero; a missing end mark means now.
func (t *MemoryTimeline) Measure(name, startMark, endMark string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := 0.0
	if v, ok := t.marks[startMark]; ok {
		start = v
	}
	end := t.clock.Now()
	if v, ok := t.marks[endMark]; ok {
		end = v
	}
	dur := end - start
	if dur < 0 {
		dur = 0
	}
	t.entries = append(t.entries, perf.Entry{Type: perf.EntryMeasure, Name: name, StartTime: start, Duration: dur})
}

func (t *MemoryTimeline) Entries() []perf.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]perf.Entry(nil), t.entries...)
}

func (t *MemoryTimeline) Reset() {
	t.mu.Lock()
	t.marks = make(map[string]float64)
	t.entries = nil
	t.mu.Unlock()
}

// NativeTimeline delegates mark/measure to host primitives and gathers the
// entries the host pushes back through the observer stream.
type NativeTimeline struct {
	mu      sync.Mutex
	mark    func(name string)
	measure func(name, startMark, endMark string)
	entries []perf.Entry
}

func NewNativeTimeline(mark func(string), measure func(name, startMark, endMark string)) *NativeTimeline {
	return &NativeTimeline{mark: mark, measure: measure}
}

// Collect receives a mark or measure entry from the observer stream.
func (t *NativeTimeline) Collect(e perf.Entry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

func (t *NativeTimeline) Mark(name string) {
	if t.mark != nil {
		t.mark(name)
	}
}

func (t *NativeTimeline) Measure(name, startMark, endMark string) {
	if t.measure != nil {
		t.measure(name, startMark, endMark)
	}
}

func (t *NativeTimeline) Entries() []perf.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]perf.Entry(nil), t.entries...)
}

func (t *NativeTimeline) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}
