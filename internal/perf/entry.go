// Package perf models the performance entry stream consumed by the metric
// aggregators. Entries mirror the browser's PerformanceEntry records: the
// engine never mutates them, it only reads and aggregates.
package perf

import "fmt"

type EntryType string

const (
	EntryLayoutShift EntryType = "layout-shift"
	EntryEvent       EntryType = "event"
	EntryFirstInput  EntryType = "first-input"
	EntryLCP         EntryType = "largest-contentful-paint"
	EntryLoAF        EntryType = "long-animation-frame"
	EntryLongTask    EntryType = "longtask"
	EntryResource    EntryType = "resource"
	EntryPaint       EntryType = "paint"
	EntryMark        EntryType = "mark"
	EntryMeasure     EntryType = "measure"
	EntryElement     EntryType = "element"
	EntryNavigation  EntryType = "navigation"
)

// Rect is a layout rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ShiftSource attributes one shifted node of a layout-shift entry.
// Node holds the selector string produced by the host's node-to-selector
// function.
type ShiftSource struct {
	Node         string `json:"node"`
	PreviousRect Rect   `json:"previousRect"`
	CurrentRect  Rect   `json:"currentRect"`
}

// Script is one script attribution record of a long-animation-frame entry.
type Script struct {
	Invoker                      string  `json:"invoker"`
	SourceURL                    string  `json:"sourceUrl"`
	SourceFunctionName           string  `json:"sourceFunctionName"`
	StartTime                    float64 `json:"startTime"`
	Duration                     float64 `json:"duration"`
	PauseDuration                float64 `json:"pauseDuration"`
	ForcedStyleAndLayoutDuration float64 `json:"forcedStyleAndLayoutDuration"`
}

// Entry is the union of the performance entry shapes the aggregators
// consume. Only the fields relevant to an entry's Type are populated;
// the rest stay zero.
type Entry struct {
	Type      EntryType
	Name      string
	StartTime float64 // ms relative to navigation start
	Duration  float64 // ms

	// layout-shift
	Value          float64
	HadRecentInput bool
	Sources        []ShiftSource

	// event / first-input
	InteractionID   int
	ProcessingStart float64
	ProcessingEnd   float64

	// largest-contentful-paint / element timing
	Element string // selector of the attributed element
	TagName string
	URL     string
	Size    int

	// long-animation-frame
	RenderStart         float64
	StyleAndLayoutStart float64
	BlockingDuration    float64
	Scripts             []Script

	// resource timing
	RequestStart  float64
	ResponseStart float64
	ResponseEnd   float64

	// navigation timing
	FetchStart            float64
	DomainLookupStart     float64
	ConnectStart          float64
	DomInteractive        float64
	DomContentLoadedStart float64
	DomComplete           float64
	LoadEventStart        float64
	LoadEventEnd          float64
	ActivationStart       float64
}

// Fingerprint returns a stable identity for duplicate suppression. The same
// browser-level event can surface through two independently registered
// observers; entries with equal fingerprints are aggregated once.
func (e Entry) Fingerprint() string {
	return fmt.Sprintf("%s/%s/%d/%.3f/%.3f", e.Type, e.Name, e.InteractionID, e.StartTime, e.Duration)
}
