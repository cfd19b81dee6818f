// Package pageview orchestrates one page-view lifecycle: the collection
// window, the finalization triggers, and delivery of the main and
// supplementary beacons. Soft navigations in SPA mode reset the per-view
// state and start the next view.
package pageview

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/perfsight/rumbeacon/internal/beacon"
	"github.com/perfsight/rumbeacon/internal/config"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/session"
	"github.com/perfsight/rumbeacon/internal/transport"
	"github.com/perfsight/rumbeacon/internal/vitals"
)

// State of the current page view.
type State int

const (
	StateInitializing State = iota
	StateCollecting
	StateFinalizing
	StateSent
)

// BeaconRecord describes one emitted beacon, for observers such as the
// dry-run reporter.
type BeaconRecord struct {
	Kind    string // "main", "supplementary", "interaction", "custom-data", "error"
	Method  string
	URL     string
	Payload *beacon.Payload
}

// Collector contributes one metric family to the POST payload. Every
// registered collector runs exactly once per finalize.
type Collector func(*beacon.Payload)

// Options wires a Controller to its collaborators.
type Options struct {
	Config     *config.Config
	Log        *eventlog.Log
	Clock      perf.Clock
	Dispatcher *perf.Dispatcher
	Session    *session.Manager
	Transport  *transport.Transport // nil in dry-run mode
	Hostname   string
	Pathname   string

	// LabelFunc supplies a dynamic page label. Failures fall back to the
	// default label source.
	LabelFunc func() (string, error)

	// OnBeacon observes every emitted beacon.
	OnBeacon func(BeaconRecord)

	// Native user-timing primitives; when absent the in-memory polyfill
	// is used.
	MarkFunc    func(name string)
	MeasureFunc func(name, startMark, endMark string)
}

// Controller is the per-page-view state machine. It exclusively owns the
// aggregator state for the duration of one view; the SPA reset is the only
// mutation boundary and acts as a full barrier.
type Controller struct {
	mu   sync.Mutex
	cfg  *config.Config
	log  *eventlog.Log
	clk  perf.Clock
	disp *perf.Dispatcher
	sess *session.Manager
	tr   *transport.Transport

	cls  *vitals.CLS
	inp  *vitals.INP
	lcp  *vitals.LCP
	loaf *vitals.LoAF
	rage *vitals.RageClick
	cpu  *vitals.CPU

	timeline   Timeline
	nativeTL   *NativeTimeline
	custom     *customData
	collectors []Collector

	state      State
	beaconSent bool
	ixSent     bool
	spaMarker  bool
	pageID     string
	zero       perf.ZeroTime
	flags      beacon.Flags
	startUnix  int64

	hostname  string
	pathname  string
	label     string
	labelFunc func() (string, error)
	onBeacon  func(BeaconRecord)

	nav        *beacon.NavTiming
	fcp        *int
	fid        *int
	ttfb       float64
	resources  map[string]perf.Entry
	elements   []perf.Entry
	ixEvents map[string]float64 // interaction kind -> first occurrence time

	errors        *ErrorReporter
	pendingErrors [][2]string // source, message awaiting the side channel

	maxMeasureTimer *time.Timer
	loadTimer       *time.Timer
	customTimer     *time.Timer
}

// New creates the controller, attaches the observer subscriptions (these
// persist across soft navigations), and opens the collection window.
func New(opts Options) *Controller {
	c := &Controller{
		cfg:       opts.Config,
		log:       opts.Log,
		clk:       opts.Clock,
		disp:      opts.Dispatcher,
		sess:      opts.Session,
		tr:        opts.Transport,
		hostname:  opts.Hostname,
		pathname:  opts.Pathname,
		label:     opts.Config.PageLabel,
		labelFunc: opts.LabelFunc,
		onBeacon:  opts.OnBeacon,
		custom:    newCustomData(),
		resources: make(map[string]perf.Entry),
		ixEvents:  make(map[string]float64),
		state:     StateInitializing,
		startUnix: time.Now().UnixMilli(),
	}
	c.log.Log(eventlog.EvaluationStart)
	c.errors = NewErrorReporter(opts.Config, opts.Log, opts.Transport, opts.OnBeacon)

	c.cls = vitals.NewCLS(opts.Config.MaxAttributionNodes)
	c.inp = vitals.NewINP()
	c.lcp = vitals.NewLCP(c.lookupResource, func() float64 { return c.pageTTFB() })
	c.loaf = vitals.NewLoAF(0)
	c.rage = vitals.NewRageClick()
	c.cpu = vitals.NewCPU()

	if opts.MarkFunc != nil && c.disp.Supported(perf.EntryMark) {
		c.nativeTL = NewNativeTimeline(opts.MarkFunc, opts.MeasureFunc)
		c.timeline = c.nativeTL
	} else {
		c.timeline = NewMemoryTimeline(opts.Clock)
	}

	c.pageID = c.sess.NewPageID()
	c.subscribe()
	c.registerBuiltinCollectors()
	c.state = StateCollecting
	c.armMaxMeasureTimer()
	c.log.Log(eventlog.EvaluationEnd)
	return c
}

func (c *Controller) subscribe() {
	sub := func(t perf.EntryType, fn perf.Observer) {
		if !c.disp.Subscribe(t, fn) {
			c.log.Log(eventlog.EntryTypeUnsupported, string(t))
		}
	}
	sub(perf.EntryLayoutShift, c.cls.ProcessEntry)
	sub(perf.EntryEvent, func(e perf.Entry) {
		c.inp.AddEntry(e)
		c.recordInteraction(e.Name, e.StartTime)
	})
	sub(perf.EntryFirstInput, func(e perf.Entry) {
		c.inp.AddEntry(e)
		c.recordFirstInput(e)
	})
	sub(perf.EntryLCP, c.lcp.ProcessEntry)
	sub(perf.EntryLoAF, c.loaf.ProcessEntry)
	sub(perf.EntryLongTask, c.cpu.ProcessEntry)
	sub(perf.EntryResource, func(e perf.Entry) {
		c.mu.Lock()
		c.resources[e.Name] = e
		c.mu.Unlock()
	})
	sub(perf.EntryPaint, func(e perf.Entry) {
		if e.Name != "first-contentful-paint" {
			return
		}
		c.mu.Lock()
		if c.fcp == nil {
			v := c.zero.Adjust(e.StartTime)
			c.fcp = &v
		}
		c.mu.Unlock()
	})
	sub(perf.EntryElement, func(e perf.Entry) {
		c.mu.Lock()
		c.elements = append(c.elements, e)
		c.mu.Unlock()
	})
	sub(perf.EntryNavigation, func(e perf.Entry) {
		c.mu.Lock()
		c.nav = navTimingFrom(e)
		c.ttfb = e.ResponseStart
		if e.ActivationStart > 0 {
			c.zero.ActivationStart = e.ActivationStart
			c.flags = c.flags.Set(beacon.FlagPageWasPrerendered)
		}
		c.mu.Unlock()
	})
	if c.nativeTL != nil {
		sub(perf.EntryMark, c.nativeTL.Collect)
		sub(perf.EntryMeasure, c.nativeTL.Collect)
	}
}

func navTimingFrom(e perf.Entry) *beacon.NavTiming {
	z := perf.ZeroTime{}
	return &beacon.NavTiming{
		FetchStart:            z.Adjust(e.FetchStart),
		DomainLookupStart:     z.Adjust(e.DomainLookupStart),
		ConnectStart:          z.Adjust(e.ConnectStart),
		RequestStart:          z.Adjust(e.RequestStart),
		ResponseStart:         z.Adjust(e.ResponseStart),
		ResponseEnd:           z.Adjust(e.ResponseEnd),
		DomInteractive:        z.Adjust(e.DomInteractive),
		DomContentLoadedStart: z.Adjust(e.DomContentLoadedStart),
		DomComplete:           z.Adjust(e.DomComplete),
		LoadEventStart:        z.Adjust(e.LoadEventStart),
		LoadEventEnd:          z.Adjust(e.LoadEventEnd),
	}
}

func (c *Controller) lookupResource(url string) *perf.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.resources[url]; ok {
		return &e
	}
	return nil
}

func (c *Controller) pageTTFB() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttfb
}

// Init is the public init command. On the very first page view, before any
// finalize, it only sets the SPA marker: developers who call init on the
// initial load must not lose that view's data. On later calls it closes
// the current view (sending it if still unsent) and starts the next one.
func (c *Controller) Init() {
	c.log.Log(eventlog.InitCalled)
	c.mu.Lock()
	firstView := !c.spaMarker
	c.spaMarker = true
	sent := c.beaconSent
	c.mu.Unlock()

	if firstView {
		c.mu.Lock()
		c.flags = c.flags.Set(beacon.FlagInitCalled)
		c.mu.Unlock()
		return
	}
	// A repeat init is a soft navigation only when the host runs as an SPA;
	// otherwise it is a stray call on the same page.
	if !c.cfg.SPAMode {
		return
	}
	if !sent {
		c.finalize("init", 0)
	}
	c.resetForSoftNav()
}

// resetForSoftNav starts a new page view. It fully replaces all aggregator
// state before returning, since observer callbacks may fire concurrently
// with the reset.
func (c *Controller) resetForSoftNav() {
	c.mu.Lock()
	c.stopTimersLocked()

	c.cls.Reset()
	c.inp.Reset()
	c.lcp.Reset()
	c.loaf.Reset()
	c.rage.Reset()
	c.cpu.Reset()
	c.timeline.Reset()
	c.custom.reset()
	c.disp.ResetSeen()

	c.pageID = c.sess.NewPageID()
	c.sess.Touch()
	c.zero = perf.ZeroTime{SoftNavStart: c.clk.Now()}
	c.flags = beacon.FlagSoftNavigation | beacon.FlagInitCalled
	c.beaconSent = false
	c.ixSent = false
	c.nav = nil
	c.fcp = nil
	c.fid = nil
	c.elements = nil
	c.ixEvents = make(map[string]float64)
	c.pendingErrors = nil
	c.errors.Reset()
	c.startUnix = time.Now().UnixMilli()
	c.state = StateCollecting
	c.mu.Unlock()

	c.armMaxMeasureTimer()
	c.log.Log(eventlog.PageViewReset, c.pageID)
}

// SetRestoreTime records a back/forward-cache restore; timestamps are
// reported relative to it.
func (c *Controller) SetRestoreTime(ts float64) {
	c.mu.Lock()
	c.zero.RestoreTime = ts
	c.flags = c.flags.Set(beacon.FlagPageWasBfcacheRestored)
	c.mu.Unlock()
}

// Send finalizes and transmits the current page view now.
func (c *Controller) Send() {
	c.log.Log(eventlog.SendCalled)
	c.finalize("send", 0)
}

// OnLoad is the load-event trigger. The beacon goes out after the
// configured minimum measure time has elapsed.
func (c *Controller) OnLoad() {
	c.mu.Lock()
	if c.beaconSent {
		c.mu.Unlock()
		return
	}
	remaining := time.Duration(0)
	if min := c.cfg.MinMeasureTime; min > 0 {
		elapsed := time.Duration(c.clk.Now()-c.zero.Value()) * time.Millisecond
		if elapsed < min {
			remaining = min - elapsed
		}
	}
	if remaining <= 0 {
		c.mu.Unlock()
		c.finalize("load", 0)
		return
	}
	if c.loadTimer != nil {
		c.loadTimer.Stop()
	}
	c.loadTimer = time.AfterFunc(remaining, func() { c.finalize("load", 0) })
	c.mu.Unlock()
}

// OnPageHidden is the visibility trigger.
func (c *Controller) OnPageHidden() {
	c.log.Log(eventlog.PageHidden)
	c.mu.Lock()
	c.flags = c.flags.Set(beacon.FlagVisibilityStateNotVisible)
	sendOnHidden := c.cfg.SendOnHidden
	c.mu.Unlock()
	if sendOnHidden {
		c.finalize("hidden", 0)
	}
}

func (c *Controller) armMaxMeasureTimer() {
	if c.cfg.MaxMeasureTime <= 0 {
		return
	}
	c.mu.Lock()
	if c.maxMeasureTimer != nil {
		c.maxMeasureTimer.Stop()
	}
	c.maxMeasureTimer = time.AfterFunc(c.cfg.MaxMeasureTime, func() {
		c.log.Log(eventlog.MaxMeasureTimeout)
		c.finalize("timeout", beacon.FlagBeaconSentAfterTimeout)
	})
	c.mu.Unlock()
}

// stopTimersLocked cancels pending timers superseded by an earlier
// trigger. Caller holds the lock.
func (c *Controller) stopTimersLocked() {
	if c.maxMeasureTimer != nil {
		c.maxMeasureTimer.Stop()
		c.maxMeasureTimer = nil
	}
	if c.loadTimer != nil {
		c.loadTimer.Stop()
		c.loadTimer = nil
	}
	if c.customTimer != nil {
		c.customTimer.Stop()
		c.customTimer = nil
	}
}

// Mark records a user-timing mark.
func (c *Controller) Mark(name string) {
	c.log.Log(eventlog.MarkCalled, name)
	c.timeline.Mark(name)
}

// Measure records a user-timing measure.
func (c *Controller) Measure(name, startMark, endMark string) {
	c.log.Log(eventlog.MeasureCalled, name)
	c.timeline.Measure(name, startMark, endMark)
}

// SetLabel overrides the page label.
func (c *Controller) SetLabel(label string) {
	c.mu.Lock()
	c.label = label
	c.mu.Unlock()
}

// AddData sets one custom data key. After the main beacon has gone out,
// updates are batched for ~100ms and sent as a delta beacon.
func (c *Controller) AddData(key, value string) {
	c.log.Log(eventlog.AddDataCalled, key)
	c.custom.set(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.beaconSent {
		return
	}
	if c.customTimer != nil {
		c.customTimer.Stop()
	}
	delay := c.cfg.CustomDataDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	c.customTimer = time.AfterFunc(delay, c.sendCustomDataBeacon)
}

// RecordClick feeds the rage-click detector and the interaction tracker.
func (c *Controller) RecordClick(click vitals.Click) {
	c.rage.ProcessClick(click)
	c.recordInteraction("click", click.Time)
}

// RecordKeydown tracks the first keyboard interaction.
func (c *Controller) RecordKeydown(t float64) {
	c.recordInteraction("keydown", t)
}

// RecordScroll tracks the first scroll.
func (c *Controller) RecordScroll(t float64) {
	c.recordInteraction("scroll", t)
}

func (c *Controller) recordInteraction(kind string, t float64) {
	key := interactionKey(kind)
	if key == "" {
		return
	}
	c.mu.Lock()
	_, seen := c.ixEvents[key]
	if !seen {
		c.ixEvents[key] = t
	}
	needIxBeacon := c.beaconSent && !c.ixSent && !seen
	if needIxBeacon {
		c.ixSent = true
	}
	c.mu.Unlock()

	if needIxBeacon {
		c.sendInteractionBeacon()
	}
}

// interactionKey maps event names to the IX field's abbreviated keys.
func interactionKey(kind string) string {
	switch kind {
	case "click", "pointerdown", "pointerup", "mousedown":
		return "c"
	case "keydown", "keyup":
		return "k"
	case "scroll":
		return "s"
	}
	return ""
}

func (c *Controller) recordFirstInput(e perf.Entry) {
	c.mu.Lock()
	if c.fid == nil {
		d := e.ProcessingStart - e.StartTime
		if d < 0 {
			d = 0
		}
		v := int(math.Floor(d))
		c.fid = &v
	}
	c.mu.Unlock()
	c.recordInteraction(e.Name, e.StartTime)
}

// State returns the current page-view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PageID returns the current page-view identifier.
func (c *Controller) PageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageID
}

// RegisterCollector adds a metric collector invoked once at finalize.
func (c *Controller) RegisterCollector(fn Collector) {
	c.mu.Lock()
	c.collectors = append(c.collectors, fn)
	c.mu.Unlock()
}

// finalize runs the send path once per page view. The sent guard is set
// before any transmission starts so a second trigger firing while a send
// is in flight cannot produce a duplicate beacon.
func (c *Controller) finalize(trigger string, extra beacon.Flags) {
	c.mu.Lock()
	if c.beaconSent {
		c.mu.Unlock()
		return
	}
	c.beaconSent = true
	c.state = StateFinalizing
	c.flags = c.flags.Set(extra)
	c.stopTimersLocked()

	sessionID := c.sess.SessionID()
	sampled := session.Sampled(sessionID, c.cfg.SampleRate)
	if !sampled {
		c.state = StateSent
		c.mu.Unlock()
		c.log.Log(eventlog.SessionNotSampled, trigger)
		return
	}
	c.mu.Unlock()

	payload := c.buildPayload()
	c.emitGETBeacons(payload)
	c.flushErrorReports()
	if c.cfg.PostBeaconURL != "" && c.tr != nil {
		_ = c.tr.SendPOST(context.Background(), payload, "main")
	}

	c.mu.Lock()
	c.state = StateSent
	c.mu.Unlock()
	c.log.Log(eventlog.MainBeaconSent, trigger)
}

// buildPayload assembles the POST payload, invoking every registered
// collector exactly once.
func (c *Controller) buildPayload() *beacon.Payload {
	c.mu.Lock()
	p := &beacon.Payload{
		CustomerID:         c.cfg.CustomerID,
		PageID:             c.pageID,
		SessionID:          c.sess.SessionID(),
		Flags:              c.flags,
		StartTime:          c.startUnix,
		ScriptVersion:      c.cfg.ScriptVersion,
		SnippetVersion:     c.cfg.SnippetVersion,
		MeasureDuration:    c.zero.Adjust(c.clk.Now()),
		CollectionDuration: c.zero.Adjust(c.clk.Now()),
		PageLabel:          c.resolveLabelLocked(),
		Hostname:           c.hostname,
		Pathname:           c.pathname,
	}
	collectors := append([]Collector(nil), c.collectors...)
	c.mu.Unlock()

	for _, fn := range collectors {
		fn(p)
	}
	return p
}

func (c *Controller) registerBuiltinCollectors() {
	c.collectors = append(c.collectors,
		func(p *beacon.Payload) { p.CLS = c.cls.Data() },
		func(p *beacon.Payload) { p.INP = c.inpData() },
		func(p *beacon.Payload) {
			c.mu.Lock()
			if c.fcp != nil {
				p.FCP = &beacon.PaintData{FirstContentfulPaint: *c.fcp}
			}
			c.mu.Unlock()
		},
		func(p *beacon.Payload) {
			c.mu.Lock()
			zero := c.zero
			c.mu.Unlock()
			p.LCP = c.lcp.Data(zero)
		},
		func(p *beacon.Payload) { p.LoAF = c.loaf.Data() },
		func(p *beacon.Payload) { p.Rage = c.rage.Data() },
		func(p *beacon.Payload) { p.CPU = c.cpu.Data() },
		func(p *beacon.Payload) {
			c.mu.Lock()
			p.NT = c.nav
			c.mu.Unlock()
		},
		func(p *beacon.Payload) { p.CustomData = c.custom.snapshot() },
	)
}

func (c *Controller) inpData() *beacon.INPData {
	hp := c.inp.HighPercentileInteraction()
	if hp == nil {
		return nil
	}
	c.mu.Lock()
	zero := c.zero
	c.mu.Unlock()
	return &beacon.INPData{
		Value:            hp.Duration,
		InteractionCount: c.inp.InteractionCount(),
		StartTime:        zero.Adjust(hp.StartTime),
		Name:             hp.Name,
		Selector:         hp.Selector,
	}
}

// resolveLabelLocked picks the page label: explicit label, then the label
// function (catch-and-fallback), then the pathname. Caller holds the lock.
func (c *Controller) resolveLabelLocked() string {
	if c.label != "" {
		c.flags = c.flags.Set(beacon.FlagPageLabelFromLabelProp)
		return c.label
	}
	if c.labelFunc != nil {
		label, err := func() (label string, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &labelPanicError{value: r}
				}
			}()
			return c.labelFunc()
		}()
		if err == nil && label != "" {
			c.flags = c.flags.Set(beacon.FlagPageLabelFromLabelFunc)
			return label
		}
		if err != nil {
			c.log.Log(eventlog.PageLabelEvaluationFailed, err.Error())
			c.pendingErrors = append(c.pendingErrors, [2]string{"page-label", err.Error()})
		}
	}
	c.flags = c.flags.Set(beacon.FlagPageLabelFromDefault)
	return c.pathname
}

type labelPanicError struct{ value any }

func (e *labelPanicError) Error() string {
	return "page label function panicked: " + strconv.Quote(strconvAny(e.value))
}

func strconvAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-string panic"
}
