package replay

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
)

// Player drives the measurement engine from a decoded trace. The page
// clock is advanced to each record's timestamp before the record is
// applied, so time-dependent behavior (session windows, rage timeouts,
// zero-time adjustment) replays exactly as it happened.
type Player struct {
	clock   *perf.ManualClock
	disp    *perf.Dispatcher
	ctrl    *pageview.Controller
	limiter *rate.Limiter

	initSeen bool

	// Stats accumulated over one Run.
	Records   int
	Entries   int
	Commands  int
	PageViews int
}

// Options configures a Player. RecordsPerSecond of zero replays as fast as
// possible.
type Options struct {
	Clock            *perf.ManualClock
	Dispatcher       *perf.Dispatcher
	Controller       *pageview.Controller
	RecordsPerSecond float64
}

func NewPlayer(opts Options) *Player {
	p := &Player{
		clock:     opts.Clock,
		disp:      opts.Dispatcher,
		ctrl:      opts.Controller,
		PageViews: 1,
	}
	if opts.RecordsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RecordsPerSecond), 1)
	}
	return p
}

// Run applies the records in order. It stops early when ctx is done.
func (p *Player) Run(ctx context.Context, records []Record) error {
	for _, rec := range records {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		p.apply(rec)
	}
	return nil
}

func (p *Player) apply(rec Record) {
	p.Records++
	if rec.Time > p.clock.Now() {
		p.clock.Set(rec.Time)
	}
	switch rec.Kind {
	case KindEntry:
		p.Entries++
		p.disp.Dispatch(rec.Entry)
	case KindClick:
		p.ctrl.RecordClick(rec.Click)
	case KindKeydown:
		p.ctrl.RecordKeydown(rec.Time)
	case KindScroll:
		p.ctrl.RecordScroll(rec.Time)
	case KindCommand:
		p.Commands++
		if rec.Command.Name == "init" {
			// The first init marks the current view; later ones are soft
			// navigations.
			if p.initSeen {
				p.PageViews++
			}
			p.initSeen = true
		}
		p.ctrl.ReplayCommands([]pageview.Command{rec.Command})
	case KindLoad:
		p.ctrl.OnLoad()
	case KindHidden:
		p.ctrl.OnPageHidden()
	case KindSoftNav:
		if p.initSeen {
			p.PageViews++
		}
		p.initSeen = true
		p.ctrl.Init()
	case KindError:
		p.ctrl.ReportError(rec.Source, rec.Message)
	}
}
