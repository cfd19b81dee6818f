package vitals

import (
	"math"
	"sort"
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// LoAFTiming is one (startTime, duration) pair, floored.
type LoAFTiming struct {
	StartTime int `json:"startTime"`
	Duration  int `json:"duration"`
}

// LoAFScript is a script group accumulated over all frames, keyed by
// (invoker, sourceURL, sourceFunctionName).
type LoAFScript struct {
	Invoker                           string       `json:"invoker"`
	SourceURL                         string       `json:"sourceUrl"`
	SourceFunctionName                string       `json:"sourceFunctionName"`
	TotalEntries                      int          `json:"totalEntries"`
	TotalDuration                     int          `json:"totalDuration"`
	TotalPauseDuration                int          `json:"totalPauseDuration"`
	TotalForcedStyleAndLayoutDuration int          `json:"totalForcedStyleAndLayoutDuration"`
	Timings                           []LoAFTiming `json:"timings"`
}

// LoAFData is the long-animation-frame summary for one page view.
type LoAFData struct {
	TotalEntries                 int          `json:"totalEntries"`
	TotalDuration                int          `json:"totalDuration"`
	TotalBlockingDuration        int          `json:"totalBlockingDuration"`
	TotalStyleAndLayoutDuration  int          `json:"totalStyleAndLayoutDuration"`
	TotalWorkDuration            int          `json:"totalWorkDuration"`
	Entries                      []LoAFTiming `json:"entries"`
	Scripts                      []LoAFScript `json:"scripts"`
}

// LoAF accumulates long-animation-frame entries and reduces them into
// per-page totals with script attribution.
type LoAF struct {
	mu         sync.Mutex
	entries    []perf.Entry
	maxEntries int // cap on reported frames; the worst by duration are kept
}

func NewLoAF(maxEntries int) *LoAF {
	if maxEntries <= 0 {
		maxEntries = 10
	}
	return &LoAF{maxEntries: maxEntries}
}

func (l *LoAF) ProcessEntry(e perf.Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Data reduces the stored frames. Reported frames are the worst by
// duration, ordered by start time ascending. All durations are floored.
func (l *LoAF) Data() *LoAFData {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}

	data := &LoAFData{TotalEntries: len(l.entries)}
	groups := make(map[string]*LoAFScript)
	var groupOrder []string

	var totalDuration, totalBlocking, totalStyleLayout, totalWork float64
	for _, e := range l.entries {
		totalDuration += e.Duration
		totalBlocking += e.BlockingDuration
		if e.StyleAndLayoutStart > 0 {
			totalStyleLayout += (e.StartTime + e.Duration) - e.StyleAndLayoutStart
		}
		if e.RenderStart > 0 {
			totalWork += e.RenderStart - e.StartTime
		} else {
			totalWork += e.Duration
		}

		for _, s := range e.Scripts {
			key := s.Invoker + "\x00" + s.SourceURL + "\x00" + s.SourceFunctionName
			g, ok := groups[key]
			if !ok {
				g = &LoAFScript{
					Invoker:            s.Invoker,
					SourceURL:          s.SourceURL,
					SourceFunctionName: s.SourceFunctionName,
				}
				groups[key] = g
				groupOrder = append(groupOrder, key)
			}
			g.TotalEntries++
			g.TotalDuration += int(math.Floor(s.Duration))
			g.TotalPauseDuration += int(math.Floor(s.PauseDuration))
			g.TotalForcedStyleAndLayoutDuration += int(math.Floor(s.ForcedStyleAndLayoutDuration))
			g.Timings = append(g.Timings, LoAFTiming{
				StartTime: int(math.Floor(s.StartTime)),
				Duration:  int(math.Floor(s.Duration)),
			})
		}
	}

	data.TotalDuration = int(math.Floor(totalDuration))
	data.TotalBlockingDuration = int(math.Floor(totalBlocking))
	data.TotalStyleAndLayoutDuration = int(math.Floor(totalStyleLayout))
	data.TotalWorkDuration = int(math.Floor(totalWork))

	worst := append([]perf.Entry(nil), l.entries...)
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].Duration > worst[j].Duration })
	if len(worst) > l.maxEntries {
		worst = worst[:l.maxEntries]
	}
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].StartTime < worst[j].StartTime })
	for _, e := range worst {
		data.Entries = append(data.Entries, LoAFTiming{
			StartTime: int(math.Floor(e.StartTime)),
			Duration:  int(math.Floor(e.Duration)),
		})
	}

	for _, key := range groupOrder {
		data.Scripts = append(data.Scripts, *groups[key])
	}
	return data
}

func (l *LoAF) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
