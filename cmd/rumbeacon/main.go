package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/perfsight/rumbeacon/internal/budget"
	"github.com/perfsight/rumbeacon/internal/config"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/output"
	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/replay"
	"github.com/perfsight/rumbeacon/internal/session"
	"github.com/perfsight/rumbeacon/internal/tracing"
	"github.com/perfsight/rumbeacon/internal/transport"
)

const sendTimeout = 10 * time.Second

// beaconSink records every emitted beacon for the end-of-run report.
type beaconSink struct {
	mu      sync.Mutex
	counts  map[string]int
	last    *pageview.BeaconRecord
	echo    bool
	printer func(format string, a ...any)
}

func (s *beaconSink) observe(rec pageview.BeaconRecord) {
	s.mu.Lock()
	s.counts[rec.Kind]++
	if rec.Payload != nil {
		r := rec
		s.last = &r
	}
	s.mu.Unlock()
	if s.echo {
		s.printer("%s %s\n", rec.Method, rec.URL)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.TraceFile == "" {
		return fmt.Errorf("a trace file is required (--trace)")
	}
	budgets, err := budget.ParseMultiple(cfg.Budgets)
	if err != nil {
		return err
	}

	records, err := replay.LoadFile(cfg.TraceFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	clock := perf.NewManualClock()
	log := eventlog.New(clock)
	dispatcher := perf.NewDispatcher()

	var store session.Store
	if cfg.SessionFile != "" {
		store = session.NewFileStore(cfg.SessionFile)
	} else {
		store = session.NewMemoryStore()
	}
	sess := session.NewManager(store, cfg.SessionTimeout)
	if sess.Resumed() {
		log.Log(eventlog.SessionResumed, sess.SessionID())
	} else {
		log.Log(eventlog.SessionStarted, sess.SessionID())
	}

	var tr *transport.Transport
	if !cfg.DryRun {
		sender := transport.NewHTTPSender(sendTimeout, provider.ShouldPropagate())
		async := transport.NewAsyncSender(sender, func(req transport.Request, err error) {
			log.Log(eventlog.SendFailed, req.Kind, err.Error())
		})
		tr = transport.New(transport.Options{
			Log:         log,
			Tracer:      provider.Tracer(),
			Sender:      sender,
			Async:       async,
			GetURL:      cfg.BeaconURL,
			PostURL:     cfg.PostBeaconURL,
			FallbackURL: cfg.FallbackBeaconURL,
		})
	}

	sink := &beaconSink{
		counts: make(map[string]int),
		echo:   cfg.DryRun && !cfg.JSONOutput,
		printer: func(format string, a ...any) {
			fmt.Fprintf(os.Stdout, format, a...)
		},
	}

	hostname, pathname := pageIdentity(records)
	ctrl := pageview.New(pageview.Options{
		Config:     cfg,
		Log:        log,
		Clock:      clock,
		Dispatcher: dispatcher,
		Session:    sess,
		Transport:  tr,
		Hostname:   hostname,
		Pathname:   pathname,
		OnBeacon:   sink.observe,
	})

	player := replay.NewPlayer(replay.Options{
		Clock:            clock,
		Dispatcher:       dispatcher,
		Controller:       ctrl,
		RecordsPerSecond: cfg.ReplayRate,
	})
	if err := player.Run(ctx, records); err != nil {
		return err
	}

	// Flush the final page view if the trace never triggered a send.
	ctrl.Send()
	if tr != nil {
		tr.Wait()
	}

	summary := output.Summary{
		CustomerID:     cfg.CustomerID,
		SessionID:      sess.SessionID(),
		SessionResumed: sess.Resumed(),
		Sampled:        session.Sampled(sess.SessionID(), cfg.SampleRate),
		Records:        player.Records,
		Entries:        player.Entries,
		Commands:       player.Commands,
		PageViews:      player.PageViews,
		Beacons:        sink.snapshot(),
	}
	sink.mu.Lock()
	if sink.last != nil {
		summary.LastPayload = sink.last.Payload
	}
	sink.mu.Unlock()
	summary.CountEvents(log)
	summary.Budgets = budget.NewEvaluator(budgets).Evaluate(summary.LastPayload)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, summary); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, summary)
	}

	if !budget.AllPass(summary.Budgets) {
		return fmt.Errorf("performance budget failed")
	}
	return nil
}

func (s *beaconSink) snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return counts
}

// pageIdentity derives the measured page's hostname and pathname from the
// trace's navigation entry.
func pageIdentity(records []replay.Record) (hostname, pathname string) {
	for _, rec := range records {
		if rec.Kind != replay.KindEntry || rec.Entry.Type != perf.EntryNavigation {
			continue
		}
		raw := rec.Entry.URL
		if raw == "" {
			raw = rec.Entry.Name
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "", ""
		}
		return u.Hostname(), u.Path
	}
	return "", ""
}
