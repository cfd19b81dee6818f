package beacon_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/perfsight/rumbeacon/internal/beacon"
)

func TestFitEntriesEmptyInput(t *testing.T) {
	fitting, remaining := beacon.FitEntries(nil, 20, 2000, "https://b.example/?UT=")
	if fitting != nil || remaining != nil {
		t.Errorf("got %v, %v; want nil, nil", fitting, remaining)
	}
}

func TestFitEntriesAllFit(t *testing.T) {
	values := []string{"a|1", "b|2", "c|3"}
	fitting, remaining := beacon.FitEntries(values, 20, 2000, "https://b.example/?UT=")
	if len(fitting) != 3 || len(remaining) != 0 {
		t.Errorf("fitting=%v remaining=%v, want all fitting", fitting, remaining)
	}
}

func TestFitEntriesCountCap(t *testing.T) {
	var values []string
	for i := 0; i < 30; i++ {
		values = append(values, fmt.Sprintf("mark%02d|%d", i, i*10))
	}
	fitting, remaining := beacon.FitEntries(values, 20, 100000, "https://b.example/?UT=")
	if len(fitting) != 20 {
		t.Errorf("len(fitting) = %d, want 20", len(fitting))
	}
	if len(remaining) != 10 {
		t.Errorf("len(remaining) = %d, want 10", len(remaining))
	}
	// Order preserved: the first overflow entry is the 21st input.
	if remaining[0] != values[20] {
		t.Errorf("remaining[0] = %q, want %q", remaining[0], values[20])
	}
}

func TestFitEntriesLengthBudget(t *testing.T) {
	base := "https://b.example/?UT="
	values := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	fitting, remaining := beacon.FitEntries(values, 20, len(base)+90, base)
	if len(fitting) != 2 {
		t.Fatalf("len(fitting) = %d, want 2", len(fitting))
	}
	if len(remaining) != 1 || remaining[0] != values[2] {
		t.Errorf("remaining = %v, want the last value", remaining)
	}
	joined := strings.Join(fitting, ",")
	if len(base)+len(joined) > len(base)+90 {
		t.Errorf("fitted URL length %d exceeds budget", len(base)+len(joined))
	}
}

func TestFitEntriesNeverEmpty(t *testing.T) {
	// A single oversized entry still goes out, even past the budget.
	values := []string{strings.Repeat("x", 5000)}
	fitting, remaining := beacon.FitEntries(values, 20, 100, "https://b.example/?UT=")
	if len(fitting) != 1 {
		t.Fatalf("len(fitting) = %d, want 1: a non-empty input must always yield a beacon", len(fitting))
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %v, want none", remaining)
	}
}

func TestFitEntriesPopsFromTheBack(t *testing.T) {
	base := "?UT="
	values := []string{"aaaa", "bbbb", "cccc", "dddd"}
	// Budget fits two values plus a separator.
	fitting, remaining := beacon.FitEntries(values, 20, len(base)+9, base)
	if len(fitting) != 2 || fitting[0] != "aaaa" || fitting[1] != "bbbb" {
		t.Errorf("fitting = %v, want the leading entries", fitting)
	}
	if len(remaining) != 2 || remaining[0] != "cccc" || remaining[1] != "dddd" {
		t.Errorf("remaining = %v, want trailing entries in order", remaining)
	}
}
