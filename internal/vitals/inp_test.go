package vitals_test

import (
	"testing"

	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/vitals"
)

func event(id int, duration float64) perf.Entry {
	return perf.Entry{
		Type:          perf.EntryEvent,
		Name:          "click",
		InteractionID: id,
		StartTime:     float64(id * 10),
		Duration:      duration,
	}
}

func TestINPEmptyReturnsNil(t *testing.T) {
	p := vitals.NewINP()
	if p.HighPercentileInteraction() != nil {
		t.Error("expected nil with no interactions")
	}
}

func TestINPSingleInteraction(t *testing.T) {
	p := vitals.NewINP()
	p.AddEntry(event(1, 120))

	hp := p.HighPercentileInteraction()
	if hp == nil {
		t.Fatal("expected an interaction")
	}
	if hp.Duration != 120 {
		t.Errorf("Duration = %v, want 120", hp.Duration)
	}
	if p.InteractionCount() != 1 {
		t.Errorf("InteractionCount = %d, want 1", p.InteractionCount())
	}
}

func TestINPDuplicateIDKeepsLargerDuration(t *testing.T) {
	p := vitals.NewINP()
	p.AddEntry(event(7, 80))
	p.AddEntry(event(7, 150))
	p.AddEntry(event(7, 60))

	hp := p.HighPercentileInteraction()
	if hp == nil {
		t.Fatal("expected an interaction")
	}
	if hp.Duration != 150 {
		t.Errorf("Duration = %v, want 150", hp.Duration)
	}
}

func TestINPFirstInputDuplicateIgnored(t *testing.T) {
	p := vitals.NewINP()
	p.AddEntry(event(3, 90))
	fi := event(3, 200)
	fi.Type = perf.EntryFirstInput
	p.AddEntry(fi)

	hp := p.HighPercentileInteraction()
	if hp == nil {
		t.Fatal("expected an interaction")
	}
	if hp.Duration != 90 {
		t.Errorf("Duration = %v, want 90: first-input for a known interaction must not replace it", hp.Duration)
	}
}

func TestINPHighPercentileIndex(t *testing.T) {
	// 200 unique interactions: the report picks index floor(200/50) = 4 of
	// the descending-sorted set, the 5th slowest.
	p := vitals.NewINP()
	for i := 1; i <= 200; i++ {
		p.AddEntry(event(i, float64(i)))
	}

	if p.InteractionCount() != 200 {
		t.Fatalf("InteractionCount = %d, want 200", p.InteractionCount())
	}
	hp := p.HighPercentileInteraction()
	if hp == nil {
		t.Fatal("expected an interaction")
	}
	// Durations 200,199,198,197,196,... descending; index 4 is 196.
	if hp.Duration != 196 {
		t.Errorf("Duration = %v, want 196", hp.Duration)
	}
}

func TestINPKeepsOnlyTopTen(t *testing.T) {
	p := vitals.NewINP()
	for i := 1; i <= 30; i++ {
		p.AddEntry(event(i, float64(i)))
	}

	// Index floor(30/50) = 0: the slowest stored interaction.
	hp := p.HighPercentileInteraction()
	if hp == nil {
		t.Fatal("expected an interaction")
	}
	if hp.Duration != 30 {
		t.Errorf("Duration = %v, want 30", hp.Duration)
	}
}

func TestINPExternalCounterPreferred(t *testing.T) {
	p := vitals.NewINP()
	p.AddEntry(event(1, 50))
	p.SetInteractionCounter(func() int64 { return 400 })

	if p.InteractionCount() != 400 {
		t.Errorf("InteractionCount = %d, want 400", p.InteractionCount())
	}
	// floor(400/50) = 8 clamps to the single stored entry.
	hp := p.HighPercentileInteraction()
	if hp == nil || hp.Duration != 50 {
		t.Errorf("HighPercentileInteraction = %+v, want the only stored entry", hp)
	}
}

func TestINPReset(t *testing.T) {
	p := vitals.NewINP()
	p.AddEntry(event(1, 50))
	p.Reset()

	if p.HighPercentileInteraction() != nil {
		t.Error("expected nil after reset")
	}
	if p.InteractionCount() != 0 {
		t.Errorf("InteractionCount = %d, want 0 after reset", p.InteractionCount())
	}
}
