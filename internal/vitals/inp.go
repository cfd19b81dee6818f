package vitals

import (
	"sort"
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// inpMaxEntries bounds the stored interaction set. floor(n/50) stays inside
// the set for n <= 500 interactions, which approximates the 98th percentile
// without retaining every interaction.
const inpMaxEntries = 10

// Interaction is one stored interaction candidate.
type Interaction struct {
	ID              int     `json:"interactionId"`
	Duration        float64 `json:"duration"`
	StartTime       float64 `json:"startTime"`
	Name            string  `json:"name"`
	ProcessingStart float64 `json:"processingStart"`
	ProcessingEnd   float64 `json:"processingEnd"`
	Selector        string  `json:"selector,omitempty"`
}

// INP tracks the slowest interactions on the page and estimates the
// high-percentile interaction latency from them.
type INP struct {
	mu            sync.Mutex
	entries       []Interaction // sorted descending by duration
	byID          map[int]int   // interaction ID -> index into entries
	total         int64
	externalCount func() int64 // native interaction counter, preferred when set
}

func NewINP() *INP {
	return &INP{byID: make(map[int]int)}
}

// SetInteractionCounter installs a native interaction counter. When present
// it is preferred over the internally tracked total.
func (p *INP) SetInteractionCounter(fn func() int64) {
	p.mu.Lock()
	p.externalCount = fn
	p.mu.Unlock()
}

// AddEntry records one event-timing or first-input entry. Duplicate
// interaction IDs keep the entry with the larger duration; a first-input
// entry is ignored when an event-timing entry for the same interaction is
// already stored, since both surface the same physical interaction. Such a
// dropped first-input duplicate is also excluded from the interaction
// count, so the same physical interaction is never counted twice.
func (p *INP) AddEntry(e perf.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.byID[e.InteractionID]; ok {
		if e.Type == perf.EntryFirstInput {
			return
		}
		p.total++
		cur := p.entries[idx]
		if e.Duration < cur.Duration ||
			(e.Duration == cur.Duration && e.ProcessingEnd <= cur.ProcessingEnd) {
			return
		}
		p.entries[idx] = toInteraction(e)
		p.resort()
		return
	}

	p.total++
	p.entries = append(p.entries, toInteraction(e))
	p.resort()
}

func toInteraction(e perf.Entry) Interaction {
	return Interaction{
		ID:              e.InteractionID,
		Duration:        e.Duration,
		StartTime:       e.StartTime,
		Name:            e.Name,
		ProcessingStart: e.ProcessingStart,
		ProcessingEnd:   e.ProcessingEnd,
		Selector:        e.Element,
	}
}

// resort re-sorts descending by duration and truncates to the bound,
// dropping index entries for evicted interactions. Caller holds the lock.
func (p *INP) resort() {
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].Duration > p.entries[j].Duration
	})
	if len(p.entries) > inpMaxEntries {
		for _, evicted := range p.entries[inpMaxEntries:] {
			delete(p.byID, evicted.ID)
		}
		p.entries = p.entries[:inpMaxEntries]
	}
	for i, it := range p.entries {
		p.byID[it.ID] = i
	}
}

// InteractionCount returns the total interactions seen, preferring the
// native counter when installed.
func (p *INP) InteractionCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countLocked()
}

func (p *INP) countLocked() int64 {
	if p.externalCount != nil {
		return p.externalCount()
	}
	return p.total
}

// HighPercentileInteraction returns the stored interaction at index
// min(stored-1, floor(n/50)) of the descending-sorted set, approximating
// the page's 98th-percentile interaction. Nil when nothing is stored.
func (p *INP) HighPercentileInteraction() *Interaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return nil
	}
	idx := int(p.countLocked() / 50)
	if idx > len(p.entries)-1 {
		idx = len(p.entries) - 1
	}
	it := p.entries[idx]
	return &it
}

// Reset clears all state, including the total counter, for a new page view.
func (p *INP) Reset() {
	p.mu.Lock()
	p.entries = nil
	p.byID = make(map[int]int)
	p.total = 0
	p.mu.Unlock()
}
