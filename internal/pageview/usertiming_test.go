package pageview_test

import (
	"testing"

	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
)

func TestMemoryTimelineMarkAndMeasure(t *testing.T) {
	clock := perf.NewManualClock()
	tl := pageview.NewMemoryTimeline(clock)

	tl.Mark("start")
	clock.Advance(250)
	tl.Mark("end")
	tl.Measure("span", "start", "end")

	entries := tl.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(entries))
	}
	var measure *perf.Entry
	for i := range entries {
		if entries[i].Type == perf.EntryMeasure {
			measure = &entries[i]
		}
	}
	if measure == nil {
		t.Fatal("expected a measure entry")
	}
	if measure.Name != "span" || measure.StartTime != 0 || measure.Duration != 250 {
		t.Errorf("measure = %+v, want span from 0 lasting 250", measure)
	}
}

func TestMemoryTimelineMeasureMissingMarks(t *testing.T) {
	clock := perf.NewManualClock()
	tl := pageview.NewMemoryTimeline(clock)
	clock.Advance(100)
	// Unknown start mark anchors at zero; unknown end mark anchors at now.
	tl.Measure("span", "missing", "")

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(entries))
	}
	if entries[0].StartTime != 0 || entries[0].Duration != 100 {
		t.Errorf("measure = %+v", entries[0])
	}
}

func TestMemoryTimelineReset(t *testing.T) {
	tl := pageview.NewMemoryTimeline(perf.NewManualClock())
	tl.Mark("a")
	tl.Reset()
	if len(tl.Entries()) != 0 {
		t.Error("expected empty timeline after reset")
	}
}

func TestNativeTimelineCollects(t *testing.T) {
	var marked, measured []string
	tl := pageview.NewNativeTimeline(
		func(name string) { marked = append(marked, name) },
		func(name, start, end string) { measured = append(measured, name) },
	)

	tl.Mark("hero")
	tl.Measure("span", "a", "b")
	tl.Collect(perf.Entry{Type: perf.EntryMark, Name: "hero", StartTime: 40})
	tl.Collect(perf.Entry{Type: perf.EntryMeasure, Name: "span", StartTime: 40, Duration: 60})

	if len(marked) != 1 || marked[0] != "hero" {
		t.Errorf("marked = %v", marked)
	}
	if len(measured) != 1 || measured[0] != "span" {
		t.Errorf("measured = %v", measured)
	}
	if len(tl.Entries()) != 2 {
		t.Errorf("len(Entries) = %d, want the collected entries", len(tl.Entries()))
	}
}
