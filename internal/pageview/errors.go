package pageview

import (
	"context"
	"strconv"
	"sync"

	"github.com/perfsight/rumbeacon/internal/beacon"
	"github.com/perfsight/rumbeacon/internal/config"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/transport"
)

// ErrorReporter is the side channel for library-attributed page errors.
// Reports go to a separate endpoint and are capped per page view; past the
// cap they are counted but not transmitted.
type ErrorReporter struct {
	mu       sync.Mutex
	cfg      *config.Config
	log      *eventlog.Log
	tr       *transport.Transport
	onBeacon func(BeaconRecord)
	sent     int
	total    int
	capped   bool
}

func NewErrorReporter(cfg *config.Config, log *eventlog.Log, tr *transport.Transport, onBeacon func(BeaconRecord)) *ErrorReporter {
	return &ErrorReporter{cfg: cfg, log: log, tr: tr, onBeacon: onBeacon}
}

// Report sends one error report, attributed to the given page view. The
// source identifies where the error surfaced (script URL or component).
func (r *ErrorReporter) Report(customerID, pageID, sessionID, source, message string) {
	r.mu.Lock()
	r.total++
	max := r.cfg.MaxErrorReports
	if max > 0 && r.sent >= max {
		if !r.capped {
			r.capped = true
			r.mu.Unlock()
			r.log.Log(eventlog.ErrorReportLimitReached, max)
			return
		}
		r.mu.Unlock()
		return
	}
	r.sent++
	n := r.sent
	r.mu.Unlock()

	r.log.Log(eventlog.ErrorReported, source)
	if r.cfg.ErrorBeaconURL == "" {
		return
	}
	q := beacon.NewQuery()
	q.Add(beacon.KeyVersion, beaconVersion)
	q.Add(beacon.KeyCustomerID, customerID)
	q.Add(beacon.KeyPageID, pageID)
	q.Add(beacon.KeySessionID, sessionID)
	q.Add("src", beacon.StripDelimiters(source))
	q.Add("msg", beacon.StripDelimiters(message))
	q.Add("n", strconv.Itoa(n))
	url := q.Encode(r.cfg.ErrorBeaconURL)
	if r.onBeacon != nil {
		r.onBeacon(BeaconRecord{Kind: "error", Method: "GET", URL: url})
	}
	if r.tr == nil {
		return
	}
	_ = r.tr.SendGET(context.Background(), url, "error")
}

// ReportError forwards a page error attributed to the library through the
// side channel, stamped with the current page view's identity.
func (c *Controller) ReportError(source, message string) {
	c.mu.Lock()
	pageID := c.pageID
	c.mu.Unlock()
	c.errors.Report(c.cfg.CustomerID, pageID, c.sess.SessionID(), source, message)
}

// flushErrorReports drains failures caught while the controller lock was
// held (the reporter sends synchronously, so they are deferred until the
// lock is released).
func (c *Controller) flushErrorReports() {
	c.mu.Lock()
	pending := c.pendingErrors
	c.pendingErrors = nil
	pageID := c.pageID
	c.mu.Unlock()
	for _, e := range pending {
		c.errors.Report(c.cfg.CustomerID, pageID, c.sess.SessionID(), e[0], e[1])
	}
}

// Reset clears the per-page-view cap on soft navigation.
func (r *ErrorReporter) Reset() {
	r.mu.Lock()
	r.sent = 0
	r.total = 0
	r.capped = false
	r.mu.Unlock()
}

// Counts returns sent and total observed errors.
func (r *ErrorReporter) Counts() (sent, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.total
}
