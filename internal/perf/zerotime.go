package perf

import "math"

// ZeroTime anchors reported timestamps. Raw entry times are relative to
// navigation start, but a page restored from the back/forward cache, a
// prerendered page, or an SPA soft navigation measures from a later origin.
// The effective zero is the greatest of the markers that are set.
type ZeroTime struct {
	RestoreTime     float64 // back/forward-cache restore
	ActivationStart float64 // prerendering activation
	SoftNavStart    float64 // internal SPA start marker
}

// Value returns the effective zero in ms.
func (z ZeroTime) Value() float64 {
	v := 0.0
	if z.RestoreTime > v {
		v = z.RestoreTime
	}
	if z.ActivationStart > v {
		v = z.ActivationStart
	}
	if z.SoftNavStart > v {
		v = z.SoftNavStart
	}
	return v
}

// Adjust converts a raw timestamp to a reported one: relative to the
// effective zero, clamped to >= 0 and floored to a whole millisecond.
func (z ZeroTime) Adjust(ts float64) int {
	v := ts - z.Value()
	if v < 0 {
		v = 0
	}
	return int(math.Floor(v))
}
