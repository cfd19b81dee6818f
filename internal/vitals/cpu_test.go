package vitals_test

import (
	"testing"

	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/vitals"
)

func TestCPUNilWithoutTasks(t *testing.T) {
	c := vitals.NewCPU()
	if c.Data() != nil {
		t.Error("expected nil with no long tasks")
	}
}

func TestCPUTotals(t *testing.T) {
	c := vitals.NewCPU()
	for _, d := range []float64{60, 80, 100, 120, 200} {
		c.ProcessEntry(perf.Entry{Type: perf.EntryLongTask, Duration: d})
	}

	data := c.Data()
	if data == nil {
		t.Fatal("expected CPU data")
	}
	if data.Count != 5 {
		t.Errorf("Count = %d, want 5", data.Count)
	}
	if data.TotalDuration != 560 {
		t.Errorf("TotalDuration = %d, want 560", data.TotalDuration)
	}
	if data.LongestDuration != 200 {
		t.Errorf("LongestDuration = %d, want 200", data.LongestDuration)
	}
	// Histogram precision allows a small error around the true median.
	if data.MedianDuration < 95 || data.MedianDuration > 105 {
		t.Errorf("MedianDuration = %d, want ~100", data.MedianDuration)
	}
}

func TestCPUReset(t *testing.T) {
	c := vitals.NewCPU()
	c.ProcessEntry(perf.Entry{Type: perf.EntryLongTask, Duration: 75})
	c.Reset()
	if c.Data() != nil {
		t.Error("expected nil after reset")
	}
}
