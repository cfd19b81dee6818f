package vitals_test

import (
	"testing"

	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/vitals"
)

func shift(start, value float64) perf.Entry {
	return perf.Entry{Type: perf.EntryLayoutShift, StartTime: start, Value: value}
}

func TestCLSSingleWindow(t *testing.T) {
	c := vitals.NewCLS(0)
	c.ProcessEntry(shift(100, 0.01))
	c.ProcessEntry(shift(300, 0.02))
	c.ProcessEntry(shift(500, 0.03))

	data := c.Data()
	if data == nil {
		t.Fatal("expected CLS data")
	}
	if got, want := data.Value, 0.06; !almostEqual(got, want) {
		t.Errorf("Value = %v, want %v", got, want)
	}
}

func TestCLSGapStartsNewWindow(t *testing.T) {
	c := vitals.NewCLS(0)
	c.ProcessEntry(shift(100, 0.05))
	c.ProcessEntry(shift(200, 0.05))
	// 1s since the previous shift: new window.
	c.ProcessEntry(shift(1200, 0.01))

	data := c.Data()
	if data == nil {
		t.Fatal("expected CLS data")
	}
	if got, want := data.Value, 0.10; !almostEqual(got, want) {
		t.Errorf("Value = %v, want %v", got, want)
	}
}

func TestCLSSpanLimitStartsNewWindow(t *testing.T) {
	c := vitals.NewCLS(0)
	// Shifts every 900ms never trip the gap rule, but the window may only
	// span 5s.
	for i := 0; i < 6; i++ {
		c.ProcessEntry(shift(float64(i)*900, 0.01))
	}
	// i=5 lands at 4500, still inside the span. The next one at 5400 is
	// >= 5000 past the window start and opens a new window.
	c.ProcessEntry(shift(5400, 0.02))

	data := c.Data()
	if data == nil {
		t.Fatal("expected CLS data")
	}
	if got, want := data.Value, 0.06; !almostEqual(got, want) {
		t.Errorf("Value = %v, want %v", got, want)
	}
}

func TestCLSReportsMaximumWindowEverSeen(t *testing.T) {
	c := vitals.NewCLS(0)
	c.ProcessEntry(shift(100, 0.20))
	c.ProcessEntry(shift(200, 0.10))
	// Later, smaller window must not reduce the reported value.
	c.ProcessEntry(shift(3000, 0.05))

	data := c.Data()
	if data == nil {
		t.Fatal("expected CLS data")
	}
	if got, want := data.Value, 0.30; !almostEqual(got, want) {
		t.Errorf("Value = %v, want %v", got, want)
	}
	if data.LargestShift == nil {
		t.Fatal("expected largest shift attribution")
	}
	if data.LargestShift.StartTime != 100 {
		t.Errorf("LargestShift.StartTime = %v, want 100", data.LargestShift.StartTime)
	}
	if !almostEqual(data.LargestShift.Value, 0.20) {
		t.Errorf("LargestShift.Value = %v, want 0.20", data.LargestShift.Value)
	}
}

func TestCLSIgnoresRecentInput(t *testing.T) {
	c := vitals.NewCLS(0)
	e := shift(100, 0.5)
	e.HadRecentInput = true
	c.ProcessEntry(e)

	if c.Data() != nil {
		t.Error("shift with recent input must not score")
	}
}

func TestCLSSourcesCapped(t *testing.T) {
	c := vitals.NewCLS(2)
	e := shift(100, 0.1)
	e.Sources = []perf.ShiftSource{{Node: "a"}, {Node: "b"}, {Node: "c"}}
	c.ProcessEntry(e)

	data := c.Data()
	if data == nil {
		t.Fatal("expected CLS data")
	}
	if len(data.Sources) != 2 {
		t.Errorf("len(Sources) = %d, want 2", len(data.Sources))
	}
}

func TestCLSNilWhenNoShifts(t *testing.T) {
	c := vitals.NewCLS(0)
	if c.Data() != nil {
		t.Error("expected nil with no shifts")
	}
}

func TestCLSReset(t *testing.T) {
	c := vitals.NewCLS(0)
	c.ProcessEntry(shift(100, 0.3))
	c.Reset()
	if c.Data() != nil {
		t.Error("expected nil after reset")
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
