package perf

import "sync"

// Observer receives entries of a subscribed type in delivery order.
type Observer func(Entry)

// Dispatcher fans performance entries out to type-keyed subscribers. It is
// the Go stand-in for PerformanceObserver: push based, tolerant of
// unsupported entry types, and re-entrancy safe against the same entry
// being delivered twice through independently registered sources.
type Dispatcher struct {
	mu          sync.Mutex
	subs        map[EntryType][]Observer
	unsupported map[EntryType]bool
	seen        map[string]struct{}
}

func NewDispatcher(unsupported ...EntryType) *Dispatcher {
	d := &Dispatcher{
		subs:        make(map[EntryType][]Observer),
		unsupported: make(map[EntryType]bool),
		seen:        make(map[string]struct{}),
	}
	for _, t := range unsupported {
		d.unsupported[t] = true
	}
	return d
}

// Subscribe registers fn for entries of type t. Returns false when the type
// is unsupported in this environment; the subscription is then permanently
// empty and the caller degrades that metric.
func (d *Dispatcher) Subscribe(t EntryType, fn Observer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsupported[t] {
		return false
	}
	d.subs[t] = append(d.subs[t], fn)
	return true
}

// Supported reports whether entries of type t can be observed.
func (d *Dispatcher) Supported(t EntryType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.unsupported[t]
}

// Dispatch delivers e to all subscribers of its type, in subscription
// order. Duplicate entries (same fingerprint) are dropped.
func (d *Dispatcher) Dispatch(e Entry) {
	d.mu.Lock()
	if d.unsupported[e.Type] {
		d.mu.Unlock()
		return
	}
	fp := e.Fingerprint()
	if _, dup := d.seen[fp]; dup {
		d.mu.Unlock()
		return
	}
	d.seen[fp] = struct{}{}
	subs := append([]Observer(nil), d.subs[e.Type]...)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// ResetSeen clears the duplicate-suppression set. Called at soft-navigation
// boundaries so entry identities from the previous page view do not leak
// into the next one.
func (d *Dispatcher) ResetSeen() {
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}
