package replay_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/perfsight/rumbeacon/internal/config"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/replay"
	"github.com/perfsight/rumbeacon/internal/session"
)

func newTestController(clock *perf.ManualClock, disp *perf.Dispatcher, onBeacon func(pageview.BeaconRecord)) *pageview.Controller {
	cfg := config.Default()
	cfg.CustomerID = "acme"
	cfg.BeaconURL = "https://beacon.example/rum"
	cfg.ErrorBeaconURL = "https://beacon.example/errors"
	cfg.DryRun = true
	cfg.SPAMode = true
	cfg.MaxMeasureTime = 0
	return pageview.New(pageview.Options{
		Config:     cfg,
		Log:        eventlog.New(clock),
		Clock:      clock,
		Dispatcher: disp,
		Session:    session.NewManager(session.NewMemoryStore(), time.Minute),
		Hostname:   "shop.example",
		Pathname:   "/checkout",
		OnBeacon:   onBeacon,
	})
}

func TestPlayerDrivesClockAndDispatch(t *testing.T) {
	records, err := replay.Load(strings.NewReader(sampleTrace))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clock := perf.NewManualClock()
	disp := perf.NewDispatcher()
	var beacons []pageview.BeaconRecord
	ctrl := newTestController(clock, disp, func(rec pageview.BeaconRecord) {
		beacons = append(beacons, rec)
	})

	player := replay.NewPlayer(replay.Options{
		Clock:      clock,
		Dispatcher: disp,
		Controller: ctrl,
	})
	if err := player.Run(context.Background(), records); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if player.Records != 8 {
		t.Errorf("Records = %d, want 8", player.Records)
	}
	if player.Entries != 5 {
		t.Errorf("Entries = %d, want 5", player.Entries)
	}
	if player.Commands != 1 {
		t.Errorf("Commands = %d, want 1", player.Commands)
	}
	if player.PageViews != 1 {
		t.Errorf("PageViews = %d, want 1", player.PageViews)
	}
	if clock.Now() != 1200 {
		t.Errorf("clock = %v, want the last record's time 1200", clock.Now())
	}

	// The trailing load signal finalizes the view.
	var mains int
	for _, b := range beacons {
		if b.Kind == "main" {
			mains++
		}
	}
	if mains != 1 {
		t.Errorf("main beacons = %d, want 1", mains)
	}
}

func TestPlayerCountsSoftNavigations(t *testing.T) {
	trace := `{"type":"command","name":"init","time":0}
{"type":"layout-shift","startTime":100,"value":0.1}
{"type":"softnav","time":2000}
{"type":"layout-shift","startTime":2100,"value":0.05}
{"type":"command","name":"send","time":2200}`
	records, err := replay.Load(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clock := perf.NewManualClock()
	disp := perf.NewDispatcher()
	ctrl := newTestController(clock, disp, nil)

	player := replay.NewPlayer(replay.Options{Clock: clock, Dispatcher: disp, Controller: ctrl})
	if err := player.Run(context.Background(), records); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if player.PageViews != 2 {
		t.Errorf("PageViews = %d, want 2: init then one soft navigation", player.PageViews)
	}
}

func TestPlayerRoutesErrorRecords(t *testing.T) {
	trace := `{"type":"error","time":100,"source":"observer","message":"cannot read entry"}`
	records, err := replay.Load(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clock := perf.NewManualClock()
	disp := perf.NewDispatcher()
	var beacons []pageview.BeaconRecord
	ctrl := newTestController(clock, disp, func(rec pageview.BeaconRecord) {
		beacons = append(beacons, rec)
	})

	player := replay.NewPlayer(replay.Options{Clock: clock, Dispatcher: disp, Controller: ctrl})
	if err := player.Run(context.Background(), records); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var errBeacons int
	for _, b := range beacons {
		if b.Kind == "error" {
			errBeacons++
			if !strings.Contains(b.URL, "src=observer") {
				t.Errorf("error URL %q missing source", b.URL)
			}
		}
	}
	if errBeacons != 1 {
		t.Errorf("error beacons = %d, want 1", errBeacons)
	}
}

func TestPlayerHonorsContextCancellation(t *testing.T) {
	trace := `{"type":"load"}`
	records, err := replay.Load(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clock := perf.NewManualClock()
	disp := perf.NewDispatcher()
	ctrl := newTestController(clock, disp, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	player := replay.NewPlayer(replay.Options{Clock: clock, Dispatcher: disp, Controller: ctrl})
	if err := player.Run(ctx, records); err == nil {
		t.Error("expected a context error")
	}
}
