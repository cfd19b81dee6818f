package pageview

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/perfsight/rumbeacon/internal/beacon"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/perf"
)

// beaconVersion is the wire-format version reported in the v parameter.
const beaconVersion = "1"

// identificationQuery builds the parameters every beacon of a page view
// carries, so supplementary and follow-up beacons can be joined to the
// main one server-side.
func (c *Controller) identificationQuery() *beacon.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := beacon.NewQuery()
	q.Add(beacon.KeyVersion, beaconVersion)
	q.Add(beacon.KeyCustomerID, c.cfg.CustomerID)
	q.Add(beacon.KeyPageID, c.pageID)
	q.Add(beacon.KeySessionID, c.sess.SessionID())
	q.Add(beacon.KeyPageLabel, beacon.StripDelimiters(c.label))
	q.Add(beacon.KeyHostname, c.hostname)
	q.Add(beacon.KeyPathname, c.pathname)
	q.Add(beacon.KeyFlags, strconv.FormatUint(uint64(c.flags), 10))
	return q
}

// emitGETBeacons serializes the payload into the main GET beacon and, when
// the user-timing entries overflow the URL budget, trailing supplementary
// beacons. Every beacon carries the full identification block.
func (c *Controller) emitGETBeacons(p *beacon.Payload) {
	q := c.identificationQuery()

	if p.CLS != nil {
		q.Add(beacon.KeyCLS, formatFloat(p.CLS.Value))
	}
	c.mu.Lock()
	if c.fid != nil {
		q.Add(beacon.KeyFID, strconv.Itoa(*c.fid))
	}
	ix := c.ixTuples()
	c.mu.Unlock()
	if p.INP != nil {
		q.Add(beacon.KeyINP, strconv.Itoa(int(math.Floor(p.INP.Value))))
	}
	if p.CPU != nil {
		q.Add(beacon.KeyCPU, beacon.EncodeTuples([][]string{{
			strconv.Itoa(p.CPU.Count),
			strconv.Itoa(p.CPU.TotalDuration),
			strconv.Itoa(p.CPU.MedianDuration),
			strconv.Itoa(p.CPU.LongestDuration),
		}}))
	}
	if p.LoAF != nil && p.LoAF.TotalBlockingDuration > 0 {
		q.Add(beacon.KeyLongTasks, strconv.Itoa(p.LoAF.TotalBlockingDuration))
	}
	if p.NT != nil {
		q.Add(beacon.KeyNavTiming, encodeNavTiming(p.NT))
	}
	q.Add(beacon.KeyPageStats, c.pageStats(p))
	q.Add(beacon.KeyCustomData, beacon.EncodeCustomData(p.CustomData))
	q.Add(beacon.KeyElementTiming, c.elementTuples())
	if len(ix) > 0 {
		q.Add(beacon.KeyInteraction, beacon.EncodeTuples(ix))
	}

	base := q.Encode(c.cfg.BeaconURL) + "&" + beacon.KeyUserTiming + "="
	fitting, remaining := beacon.FitEntries(
		c.timingTuples(), c.cfg.MaxUserTimings, c.cfg.MaxURLLength, base)
	mainURL := q.Encode(c.cfg.BeaconURL)
	if len(fitting) > 0 {
		q.Add(beacon.KeyUserTiming, joinTuples(fitting))
		mainURL = q.Encode(c.cfg.BeaconURL)
	}
	c.sendGET(mainURL, "main", p)

	for len(remaining) > 0 {
		sq := c.identificationQuery()
		supBase := sq.Encode(c.cfg.BeaconURL) + "&" + beacon.KeyUserTiming + "="
		fitting, remaining = beacon.FitEntries(
			remaining, c.cfg.MaxUserTimings, c.cfg.MaxURLLength, supBase)
		sq.Add(beacon.KeyUserTiming, joinTuples(fitting))
		c.sendGET(sq.Encode(c.cfg.BeaconURL), "supplementary", nil)
		c.log.Log(eventlog.SupplementaryBeaconSent, len(fitting))
	}
}

func (c *Controller) sendGET(url, kind string, p *beacon.Payload) {
	if c.onBeacon != nil {
		c.onBeacon(BeaconRecord{Kind: kind, Method: "GET", URL: url, Payload: p})
	}
	if c.tr == nil {
		return
	}
	_ = c.tr.SendGET(context.Background(), url, kind)
}

// timingTuples serializes the user-timing timeline as name|start or
// name|start|duration tuples, already delimiter-stripped and joined-ready.
func (c *Controller) timingTuples() []string {
	entries := c.timeline.Entries()
	c.mu.Lock()
	zero := c.zero
	c.mu.Unlock()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		t := []string{
			beacon.StripDelimiters(e.Name),
			strconv.Itoa(zero.Adjust(e.StartTime)),
		}
		if e.Type == perf.EntryMeasure {
			t = append(t, strconv.Itoa(int(math.Floor(e.Duration))))
		}
		out = append(out, joinPipe(t))
	}
	return out
}

func (c *Controller) elementTuples() string {
	c.mu.Lock()
	elements := append([]perf.Entry(nil), c.elements...)
	zero := c.zero
	max := c.cfg.MaxElementTimings
	c.mu.Unlock()
	if max > 0 && len(elements) > max {
		elements = elements[:max]
	}
	tuples := make([][]string, 0, len(elements))
	for _, e := range elements {
		tuples = append(tuples, []string{
			e.Element,
			strconv.Itoa(zero.Adjust(e.StartTime)),
		})
	}
	return beacon.EncodeTuples(tuples)
}

// ixTuples lists the first occurrence of each interaction kind, sorted by
// time. Caller holds the lock.
func (c *Controller) ixTuples() [][]string {
	type kv struct {
		key string
		t   float64
	}
	kvs := make([]kv, 0, len(c.ixEvents))
	for k, t := range c.ixEvents {
		kvs = append(kvs, kv{k, t})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].t < kvs[j].t })
	if max := c.cfg.MaxInteractions; max > 0 && len(kvs) > max {
		kvs = kvs[:max]
	}
	out := make([][]string, 0, len(kvs))
	for _, e := range kvs {
		out = append(out, []string{e.key, strconv.Itoa(c.zero.Adjust(e.t))})
	}
	return out
}

// pageStats condenses collection-level counts into the PS field.
func (c *Controller) pageStats(p *beacon.Payload) string {
	c.mu.Lock()
	resources := len(c.resources)
	c.mu.Unlock()
	tuples := [][]string{{"rs", strconv.Itoa(resources)}}
	if p.CPU != nil {
		tuples = append(tuples, []string{"lt", strconv.Itoa(p.CPU.Count)})
	}
	if p.LoAF != nil {
		tuples = append(tuples, []string{"lf", strconv.Itoa(p.LoAF.TotalEntries)})
	}
	return beacon.EncodeTuples(tuples)
}

func encodeNavTiming(nt *beacon.NavTiming) string {
	tuples := [][]string{
		{"fs", strconv.Itoa(nt.FetchStart)},
		{"ds", strconv.Itoa(nt.DomainLookupStart)},
		{"cs", strconv.Itoa(nt.ConnectStart)},
		{"qs", strconv.Itoa(nt.RequestStart)},
		{"bs", strconv.Itoa(nt.ResponseStart)},
		{"be", strconv.Itoa(nt.ResponseEnd)},
		{"oi", strconv.Itoa(nt.DomInteractive)},
		{"oc", strconv.Itoa(nt.DomContentLoadedStart)},
		{"om", strconv.Itoa(nt.DomComplete)},
		{"ls", strconv.Itoa(nt.LoadEventStart)},
		{"le", strconv.Itoa(nt.LoadEventEnd)},
	}
	return beacon.EncodeTuples(tuples)
}

// sendInteractionBeacon reports the first user interaction of the page
// view. It goes out at most once, and only after the main beacon.
func (c *Controller) sendInteractionBeacon() {
	q := c.identificationQuery()
	c.mu.Lock()
	ix := c.ixTuples()
	c.mu.Unlock()
	if len(ix) == 0 {
		return
	}
	q.Add(beacon.KeyInteraction, beacon.EncodeTuples(ix))
	if c.inp != nil {
		if hp := c.inp.HighPercentileInteraction(); hp != nil {
			q.Add(beacon.KeyINP, strconv.Itoa(int(math.Floor(hp.Duration))))
		}
	}
	c.sendGET(q.Encode(c.cfg.BeaconURL), "interaction", nil)
	c.log.Log(eventlog.InteractionBeaconSent)
}

// sendCustomDataBeacon flushes custom-data keys changed since the last
// beacon.
func (c *Controller) sendCustomDataBeacon() {
	delta := c.custom.delta()
	if len(delta) == 0 {
		return
	}
	q := c.identificationQuery()
	q.Add(beacon.KeyCustomData, beacon.EncodeCustomData(delta))
	c.sendGET(q.Encode(c.cfg.BeaconURL), "custom-data", nil)
	c.log.Log(eventlog.CustomDataBeaconSent, len(delta))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func joinPipe(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "|"
		}
		out += p
	}
	return out
}

func joinTuples(tuples []string) string {
	out := ""
	for i, t := range tuples {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
