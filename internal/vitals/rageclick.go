package vitals

import (
	"strings"
	"sync"
)

const (
	// rageThreshold clicks within the burst window mark the burst as rage.
	rageThreshold = 5
	// rageRadiusPx is the distance from the anchor click inside which a
	// click still counts toward the burst.
	rageRadiusPx = 50.0
	// rageTimeoutMs closes a burst after this much inactivity.
	rageTimeoutMs = 5000.0
)

// interactiveTags are element types where repeated clicks on the same
// element count toward the burst even outside the radius.
var interactiveTags = map[string]bool{"BUTTON": true, "A": true, "INPUT": true}

// Click is one DOM click with host-provided element attribution.
type Click struct {
	Time     float64 // ms
	X, Y     float64
	Selector string
	TagName  string
}

// RageData is the reported rage-click attribution, present only when the
// burst reached the rage threshold.
type RageData struct {
	Value     int     `json:"value"`
	StartTime float64 `json:"startTime"`
	Selector  string  `json:"selector,omitempty"`
	TagName   string  `json:"tagName,omitempty"`
}

// RageClick detects bursts of repeated clicks on or near the same target.
// A burst is open while a target is set; it closes on inactivity or on a
// click that lands away from the anchor.
type RageClick struct {
	mu        sync.Mutex
	open      bool
	startTime float64
	lastClick float64
	clicks    int
	selector  string
	tagName   string
	x, y      float64
}

func NewRageClick() *RageClick {
	return &RageClick{}
}

// ProcessClick advances the state machine by one click.
func (r *RageClick) ProcessClick(c Click) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Inactivity timeout: a burst still below the threshold expired before
	// this click arrived. A confirmed burst stays open so later clicks on
	// the same target keep counting toward the report.
	if r.open && r.clicks < rageThreshold && c.Time-r.lastClick >= rageTimeoutMs {
		r.resetLocked()
	}

	if !r.open {
		r.startLocked(c)
		return
	}

	if r.withinLocked(c) {
		r.clicks++
		r.lastClick = c.Time
		return
	}

	if r.clicks >= rageThreshold {
		// A confirmed burst ends on an off-target click, and that click
		// anchors a fresh burst immediately.
		r.resetLocked()
		r.startLocked(c)
		return
	}

	// Below threshold: the burst just dies. This click does not seed a new
	// burst; the next click starts fresh on its own.
	r.resetLocked()
}

// withinLocked reports whether the click continues the burst: inside the
// radius of the anchor, or on the same interactive element.
func (r *RageClick) withinLocked(c Click) bool {
	dx := c.X - r.x
	dy := c.Y - r.y
	if dx*dx+dy*dy <= rageRadiusPx*rageRadiusPx {
		return true
	}
	tag := strings.ToUpper(c.TagName)
	return interactiveTags[tag] && tag == strings.ToUpper(r.tagName) && c.Selector == r.selector
}

func (r *RageClick) startLocked(c Click) {
	r.open = true
	r.startTime = c.Time
	r.lastClick = c.Time
	r.clicks = 1
	r.selector = c.Selector
	r.tagName = c.TagName
	r.x = c.X
	r.y = c.Y
}

func (r *RageClick) resetLocked() {
	r.open = false
	r.startTime = 0
	r.lastClick = 0
	r.clicks = 0
	r.selector = ""
	r.tagName = ""
	r.x = 0
	r.y = 0
}

// Clicks returns the current burst's click count.
func (r *RageClick) Clicks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clicks
}

// Data returns attribution once the burst reached the rage threshold,
// otherwise nil.
func (r *RageClick) Data() *RageData {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clicks < rageThreshold {
		return nil
	}
	return &RageData{
		Value:     r.clicks,
		StartTime: r.startTime,
		Selector:  r.selector,
		TagName:   r.tagName,
	}
}

// Reset clears the burst, including any pending timeout state. Invoked at
// soft-navigation boundaries and by the external reset API.
func (r *RageClick) Reset() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
}
