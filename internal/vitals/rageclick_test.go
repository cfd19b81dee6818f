package vitals_test

import (
	"testing"

	"github.com/perfsight/rumbeacon/internal/vitals"
)

func click(t, x, y float64) vitals.Click {
	return vitals.Click{Time: t, X: x, Y: y, Selector: "#buy", TagName: "BUTTON"}
}

func TestRageClickBelowThreshold(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 4; i++ {
		r.ProcessClick(click(float64(i*100), 10, 10))
	}
	if r.Data() != nil {
		t.Error("4 clicks must not report rage")
	}
}

func TestRageClickAtThreshold(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 5; i++ {
		r.ProcessClick(click(float64(i*100), 10+float64(i), 10))
	}
	data := r.Data()
	if data == nil {
		t.Fatal("5 clicks within the radius must report rage")
	}
	if data.Value != 5 {
		t.Errorf("Value = %d, want 5", data.Value)
	}
	if data.StartTime != 0 {
		t.Errorf("StartTime = %v, want 0 (first click of the burst)", data.StartTime)
	}
	if data.Selector != "#buy" {
		t.Errorf("Selector = %q, want %q", data.Selector, "#buy")
	}
}

func TestRageClickOutsideRadiusEndsBurst(t *testing.T) {
	r := vitals.NewRageClick()
	r.ProcessClick(click(0, 10, 10))
	r.ProcessClick(click(100, 12, 10))
	// Far away and a different element: the burst dies without seeding.
	r.ProcessClick(vitals.Click{Time: 200, X: 500, Y: 500, Selector: "#other", TagName: "DIV"})

	if r.Clicks() != 0 {
		t.Errorf("Clicks = %d, want 0 after a below-threshold off-target click", r.Clicks())
	}
}

func TestRageClickConfirmedBurstOffTargetStartsFresh(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 5; i++ {
		r.ProcessClick(click(float64(i*100), 10, 10))
	}
	// Confirmed rage. An off-target click ends it and anchors a new burst.
	r.ProcessClick(vitals.Click{Time: 600, X: 500, Y: 500, Selector: "#other", TagName: "DIV"})

	if r.Clicks() != 1 {
		t.Errorf("Clicks = %d, want 1: the off-target click anchors a fresh burst", r.Clicks())
	}
	if r.Data() != nil {
		t.Error("the fresh burst must not report rage yet")
	}
}

func TestRageClickSameInteractiveElementOutsideRadius(t *testing.T) {
	r := vitals.NewRageClick()
	// Clicks on the same button far apart in page coordinates still count.
	for i := 0; i < 5; i++ {
		r.ProcessClick(vitals.Click{Time: float64(i * 100), X: float64(i * 200), Y: 10, Selector: "#buy", TagName: "BUTTON"})
	}
	data := r.Data()
	if data == nil {
		t.Fatal("clicks on the same interactive element must continue the burst")
	}
	if data.Value != 5 {
		t.Errorf("Value = %d, want 5", data.Value)
	}
}

func TestRageClickInactivityTimeout(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 4; i++ {
		r.ProcessClick(click(float64(i*100), 10, 10))
	}
	// 5s of silence expires the burst; this click starts a new one.
	r.ProcessClick(click(300+5000, 10, 10))

	if r.Clicks() != 1 {
		t.Errorf("Clicks = %d, want 1 after the timeout", r.Clicks())
	}
}

func TestRageClickConfirmedBurstSurvivesInactivity(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 5; i++ {
		r.ProcessClick(click(float64(i*100), 10, 10))
	}
	// Once confirmed, the timeout no longer applies: a late click on the
	// same target keeps counting.
	r.ProcessClick(click(6000, 10, 10))

	data := r.Data()
	if data == nil {
		t.Fatal("confirmed burst must survive a >5s gap")
	}
	if data.Value != 6 {
		t.Errorf("Value = %d, want 6", data.Value)
	}
	if data.StartTime != 0 {
		t.Errorf("StartTime = %v, want the original burst start", data.StartTime)
	}
}

func TestRageClickReset(t *testing.T) {
	r := vitals.NewRageClick()
	for i := 0; i < 5; i++ {
		r.ProcessClick(click(float64(i*100), 10, 10))
	}
	r.Reset()
	if r.Data() != nil {
		t.Error("expected nil after reset")
	}
}
