package beacon

import (
	"encoding/json"

	"github.com/perfsight/rumbeacon/internal/vitals"
)

// NavTiming is the condensed navigation-timing block of the POST beacon.
type NavTiming struct {
	FetchStart            int `json:"fetchStart"`
	DomainLookupStart     int `json:"domainLookupStart"`
	ConnectStart          int `json:"connectStart"`
	RequestStart          int `json:"requestStart"`
	ResponseStart         int `json:"responseStart"`
	ResponseEnd           int `json:"responseEnd"`
	DomInteractive        int `json:"domInteractive"`
	DomContentLoadedStart int `json:"domContentLoadedEventStart"`
	DomComplete           int `json:"domComplete"`
	LoadEventStart        int `json:"loadEventStart"`
	LoadEventEnd          int `json:"loadEventEnd"`
}

// PaintData holds the paint milestones.
type PaintData struct {
	FirstContentfulPaint int `json:"firstContentfulPaint"`
}

// INPData is the reported interaction-to-next-paint block.
type INPData struct {
	Value            float64 `json:"value"`
	InteractionCount int64   `json:"interactionCount"`
	StartTime        int     `json:"startTime"`
	Name             string  `json:"name,omitempty"`
	Selector         string  `json:"selector,omitempty"`
}

// Payload is the POST beacon body: metadata plus a partial map of metric
// families. It is assembled once at send time and transmitted atomically.
type Payload struct {
	CustomerID         string `json:"customerId"`
	PageID             string `json:"pageId"`
	SessionID          string `json:"sessionId"`
	Flags              Flags  `json:"flags"`
	StartTime          int64  `json:"startTime"`
	ScriptVersion      string `json:"scriptVersion"`
	SnippetVersion     string `json:"snippetVersion,omitempty"`
	MeasureDuration    int    `json:"measureDuration"`
	CollectionDuration int    `json:"collectionDuration"`
	PageLabel          string `json:"pageLabel,omitempty"`
	Hostname           string `json:"hostname,omitempty"`
	Pathname           string `json:"pathname,omitempty"`

	CLS        *vitals.CLSData   `json:"cls,omitempty"`
	INP        *INPData          `json:"inp,omitempty"`
	FCP        *PaintData        `json:"fcp,omitempty"`
	LCP        *vitals.LCPData   `json:"lcp,omitempty"`
	LoAF       *vitals.LoAFData  `json:"loaf,omitempty"`
	Rage       *vitals.RageData  `json:"rage,omitempty"`
	CPU        *vitals.CPUData   `json:"cpu,omitempty"`
	NT         *NavTiming        `json:"nt,omitempty"`
	CustomData map[string]string `json:"customData,omitempty"`
}

// Marshal serializes the payload for transmission.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
