package pageview

import "testing"

func TestCustomDataDelta(t *testing.T) {
	cd := newCustomData()
	cd.set("plan", "pro")
	cd.set("cart", "3")

	snap := cd.snapshot()
	if len(snap) != 2 || snap["plan"] != "pro" || snap["cart"] != "3" {
		t.Fatalf("snapshot = %v", snap)
	}

	// Nothing changed since the snapshot.
	if d := cd.delta(); len(d) != 0 {
		t.Errorf("delta after snapshot = %v, want empty", d)
	}

	cd.set("cart", "4")
	cd.set("coupon", "SAVE10")
	d := cd.delta()
	if len(d) != 2 || d["cart"] != "4" || d["coupon"] != "SAVE10" {
		t.Errorf("delta = %v, want changed keys only", d)
	}

	// The delta marked its keys sent.
	if d := cd.delta(); len(d) != 0 {
		t.Errorf("second delta = %v, want empty", d)
	}
}

func TestCustomDataReset(t *testing.T) {
	cd := newCustomData()
	cd.set("plan", "pro")
	cd.snapshot()
	cd.reset()

	if snap := cd.snapshot(); len(snap) != 0 {
		t.Errorf("snapshot after reset = %v, want empty", snap)
	}
	cd.set("plan", "free")
	if d := cd.delta(); d["plan"] != "free" {
		t.Errorf("delta after reset = %v", d)
	}
}
