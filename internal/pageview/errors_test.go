package pageview_test

import (
	"strings"
	"testing"

	"github.com/perfsight/rumbeacon/internal/config"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
)

func TestErrorReporterCapsPerPageView(t *testing.T) {
	cfg := config.Default()
	cfg.MaxErrorReports = 2
	cfg.ErrorBeaconURL = "https://beacon.example/errors"
	log := eventlog.New(perf.NewManualClock())

	var sent []pageview.BeaconRecord
	r := pageview.NewErrorReporter(cfg, log, nil, func(rec pageview.BeaconRecord) {
		sent = append(sent, rec)
	})

	for i := 0; i < 5; i++ {
		r.Report("acme", "p1", "s1", "app.js", "boom")
	}

	if len(sent) != 2 {
		t.Errorf("error beacons = %d, want capped at 2", len(sent))
	}
	reported, total := r.Counts()
	if reported != 2 || total != 5 {
		t.Errorf("Counts = %d, %d; want 2 sent of 5 total", reported, total)
	}
	if log.Count(eventlog.ErrorReported) != 2 {
		t.Errorf("ErrorReported = %d, want 2", log.Count(eventlog.ErrorReported))
	}
	if log.Count(eventlog.ErrorReportLimitReached) != 1 {
		t.Errorf("ErrorReportLimitReached = %d, want exactly 1", log.Count(eventlog.ErrorReportLimitReached))
	}
}

func TestErrorReporterBeaconShape(t *testing.T) {
	cfg := config.Default()
	cfg.ErrorBeaconURL = "https://beacon.example/errors"
	log := eventlog.New(perf.NewManualClock())

	var sent []pageview.BeaconRecord
	r := pageview.NewErrorReporter(cfg, log, nil, func(rec pageview.BeaconRecord) {
		sent = append(sent, rec)
	})
	r.Report("acme", "p1", "s1", "widget.js", "cannot, read|prop")

	if len(sent) != 1 {
		t.Fatalf("error beacons = %d, want 1", len(sent))
	}
	url := sent[0].URL
	for _, part := range []string{"id=acme", "sid=p1", "uid=s1", "src=widget.js", "n=1"} {
		if !strings.Contains(url, part) {
			t.Errorf("error URL %q missing %q", url, part)
		}
	}
	// Reserved delimiters are stripped from free text.
	if !strings.Contains(url, "msg=cannot+readprop") {
		t.Errorf("error URL %q: delimiters must be stripped from the message", url)
	}
}

func TestErrorReporterReset(t *testing.T) {
	cfg := config.Default()
	cfg.MaxErrorReports = 1
	cfg.ErrorBeaconURL = "https://beacon.example/errors"
	log := eventlog.New(perf.NewManualClock())

	var sent int
	r := pageview.NewErrorReporter(cfg, log, nil, func(pageview.BeaconRecord) { sent++ })
	r.Report("acme", "p1", "s1", "a.js", "x")
	r.Report("acme", "p1", "s1", "a.js", "y")
	r.Reset()
	r.Report("acme", "p2", "s1", "a.js", "z")

	if sent != 2 {
		t.Errorf("error beacons = %d, want 2: the cap resets per page view", sent)
	}
}
