// Package eventlog is the engine's internal diagnostic channel: an
// append-only list of timestamped events that is queryable at any time.
// Failures in the engine are silent from the host's perspective and become
// visible only here.
package eventlog

import (
	"sync"

	"github.com/perfsight/rumbeacon/internal/perf"
)

// Code identifies a diagnostic event.
type Code int

const (
	EvaluationStart Code = iota + 1
	EvaluationEnd
	InitCalled
	SendCalled
	MarkCalled
	MeasureCalled
	AddDataCalled
	SessionStarted
	SessionResumed
	SessionNotSampled
	PageViewReset
	MainBeaconSent
	SupplementaryBeaconSent
	InteractionBeaconSent
	CustomDataBeaconSent
	PostBeaconSent
	PostBeaconBlocked
	PostBeaconRetried
	SendFailed
	EntryTypeUnsupported
	DataUnavailable
	PageLabelEvaluationFailed
	ErrorReported
	ErrorReportLimitReached
	MaxMeasureTimeout
	PageHidden
	CommandReplayed
)

// Event is one log record. Args are free-form context values; their meaning
// depends on the code.
type Event struct {
	Timestamp float64
	Code      Code
	Args      []any
}

// Log is an append-only event list for the life of one page (it is not
// reset across soft navigations, by contract, so a full SPA session stays
// inspectable).
type Log struct {
	mu     sync.Mutex
	clock  perf.Clock
	events []Event
}

func New(clock perf.Clock) *Log {
	return &Log{clock: clock}
}

// Log appends an event. It never fails.
func (l *Log) Log(code Code, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, Event{Timestamp: l.clock.Now(), Code: code, Args: args})
	l.mu.Unlock()
}

// Events returns a snapshot of the log in insertion order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Count returns the number of occurrences of code.
func (l *Log) Count(code Code) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Code == code {
			n++
		}
	}
	return n
}
