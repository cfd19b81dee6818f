package vitals

import (
	"math"
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// ResourceLookup finds the resource-timing entry for a URL, or nil.
type ResourceLookup func(url string) *perf.Entry

// LCPData is the reported largest contentful paint with sub-part
// attribution. The sub-parts are nil exactly when the candidate has no
// matching resource-timing entry.
type LCPData struct {
	Value             int    `json:"value"`
	Selector          string `json:"selector,omitempty"`
	TagName           string `json:"tagName,omitempty"`
	URL               string `json:"url,omitempty"`
	Size              int    `json:"size,omitempty"`
	ResourceLoadDelay *int   `json:"resourceLoadDelay"`
	ResourceLoadTime  *int   `json:"resourceLoadTime"`
	ElementRenderDelay *int  `json:"elementRenderDelay"`
}

// LCP tracks the latest-largest paint candidate. Candidates only grow in
// start time, so strictly-greater replacement is the only rule needed.
type LCP struct {
	mu        sync.Mutex
	candidate *perf.Entry
	lookup    ResourceLookup
	ttfb      func() float64
}

// NewLCP wires the aggregator to its collaborators: a resource-timing
// lookup and the page's time-to-first-byte.
func NewLCP(lookup ResourceLookup, ttfb func() float64) *LCP {
	return &LCP{lookup: lookup, ttfb: ttfb}
}

func (l *LCP) ProcessEntry(e perf.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.candidate == nil || e.StartTime > l.candidate.StartTime {
		l.candidate = &e
	}
}

// Data reports the candidate relative to the given zero time, or nil when
// no candidate was observed.
func (l *LCP) Data(zero perf.ZeroTime) *LCPData {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.candidate == nil {
		return nil
	}
	c := l.candidate

	data := &LCPData{
		Value:    zero.Adjust(c.StartTime),
		Selector: c.Element,
		TagName:  c.TagName,
		URL:      c.URL,
		Size:     c.Size,
	}

	if c.URL != "" && l.lookup != nil {
		if res := l.lookup(c.URL); res != nil {
			var ttfb float64
			if l.ttfb != nil {
				ttfb = l.ttfb()
			}
			data.ResourceLoadDelay = flooredNonNegative(res.RequestStart - ttfb)
			data.ResourceLoadTime = flooredNonNegative(res.ResponseEnd - res.RequestStart)
			data.ElementRenderDelay = flooredNonNegative(c.StartTime - res.ResponseEnd)
		}
	}
	return data
}

func (l *LCP) Reset() {
	l.mu.Lock()
	l.candidate = nil
	l.mu.Unlock()
}

func flooredNonNegative(v float64) *int {
	if v < 0 {
		v = 0
	}
	n := int(math.Floor(v))
	return &n
}
