// Package replay feeds a recorded browser trace through the measurement
// engine. A trace is a JSON-lines file: one record per line, each either a
// performance entry, a DOM event, a queued command, or a lifecycle signal.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/perfsight/rumbeacon/internal/pageview"
	"github.com/perfsight/rumbeacon/internal/perf"
	"github.com/perfsight/rumbeacon/internal/vitals"
)

// Record kinds beyond the performance entry types.
const (
	KindEntry   = "entry"
	KindClick   = "click"
	KindKeydown = "keydown"
	KindScroll  = "scroll"
	KindCommand = "command"
	KindLoad    = "load"
	KindHidden  = "hidden"
	KindSoftNav = "softnav"
	KindError   = "error"
)

// Record is one trace line, decoded.
type Record struct {
	Kind    string
	Time    float64 // ms on the page clock
	Entry   perf.Entry
	Click   vitals.Click
	Command pageview.Command

	// Error-record attribution.
	Source  string
	Message string
}

// LoadFile reads a trace from disk.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	records, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Load parses a JSON-lines trace. Blank lines and #-comments are skipped;
// a malformed line is an error with its line number.
func Load(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}
		rec, err := parseRecord(line)
		if err == errUnknownType {
			// Traces recorded by newer agents may carry entry types this
			// build does not collect. Skip them instead of failing the run.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return records, nil
}

var errUnknownType = fmt.Errorf("unknown record type")

func parseRecord(line string) (Record, error) {
	typ := gjson.Get(line, "type").String()
	if typ == "" {
		return Record{}, fmt.Errorf("missing type")
	}
	switch typ {
	case KindClick:
		c := vitals.Click{
			Time:     gjson.Get(line, "time").Float(),
			X:        gjson.Get(line, "x").Float(),
			Y:        gjson.Get(line, "y").Float(),
			Selector: gjson.Get(line, "selector").String(),
			TagName:  gjson.Get(line, "tagName").String(),
		}
		return Record{Kind: KindClick, Time: c.Time, Click: c}, nil
	case KindKeydown, KindScroll:
		return Record{Kind: typ, Time: gjson.Get(line, "time").Float()}, nil
	case KindCommand:
		cmd := pageview.Command{Name: gjson.Get(line, "name").String()}
		for _, a := range gjson.Get(line, "args").Array() {
			cmd.Args = append(cmd.Args, a.String())
		}
		if cmd.Name == "" {
			return Record{}, fmt.Errorf("command record without name")
		}
		return Record{Kind: KindCommand, Time: gjson.Get(line, "time").Float(), Command: cmd}, nil
	case KindLoad, KindHidden, KindSoftNav:
		return Record{Kind: typ, Time: gjson.Get(line, "time").Float()}, nil
	case KindError:
		msg := gjson.Get(line, "message").String()
		if msg == "" {
			return Record{}, fmt.Errorf("error record without message")
		}
		return Record{
			Kind:    KindError,
			Time:    gjson.Get(line, "time").Float(),
			Source:  gjson.Get(line, "source").String(),
			Message: msg,
		}, nil
	}

	// Everything else is a performance entry type.
	e, err := parseEntry(typ, line)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: KindEntry, Time: e.StartTime, Entry: e}, nil
}

func parseEntry(typ, line string) (perf.Entry, error) {
	et := perf.EntryType(typ)
	switch et {
	case perf.EntryLayoutShift, perf.EntryEvent, perf.EntryFirstInput,
		perf.EntryLCP, perf.EntryLoAF, perf.EntryLongTask,
		perf.EntryResource, perf.EntryPaint, perf.EntryMark,
		perf.EntryMeasure, perf.EntryElement, perf.EntryNavigation:
	default:
		return perf.Entry{}, errUnknownType
	}

	e := perf.Entry{
		Type:      et,
		Name:      gjson.Get(line, "name").String(),
		StartTime: gjson.Get(line, "startTime").Float(),
		Duration:  gjson.Get(line, "duration").Float(),

		Value:          gjson.Get(line, "value").Float(),
		HadRecentInput: gjson.Get(line, "hadRecentInput").Bool(),

		InteractionID:   int(gjson.Get(line, "interactionId").Int()),
		ProcessingStart: gjson.Get(line, "processingStart").Float(),
		ProcessingEnd:   gjson.Get(line, "processingEnd").Float(),

		Element: gjson.Get(line, "element").String(),
		TagName: gjson.Get(line, "tagName").String(),
		URL:     gjson.Get(line, "url").String(),
		Size:    int(gjson.Get(line, "size").Int()),

		RenderStart:         gjson.Get(line, "renderStart").Float(),
		StyleAndLayoutStart: gjson.Get(line, "styleAndLayoutStart").Float(),
		BlockingDuration:    gjson.Get(line, "blockingDuration").Float(),

		RequestStart:  gjson.Get(line, "requestStart").Float(),
		ResponseStart: gjson.Get(line, "responseStart").Float(),
		ResponseEnd:   gjson.Get(line, "responseEnd").Float(),

		FetchStart:            gjson.Get(line, "fetchStart").Float(),
		DomainLookupStart:     gjson.Get(line, "domainLookupStart").Float(),
		ConnectStart:          gjson.Get(line, "connectStart").Float(),
		DomInteractive:        gjson.Get(line, "domInteractive").Float(),
		DomContentLoadedStart: gjson.Get(line, "domContentLoadedEventStart").Float(),
		DomComplete:           gjson.Get(line, "domComplete").Float(),
		LoadEventStart:        gjson.Get(line, "loadEventStart").Float(),
		LoadEventEnd:          gjson.Get(line, "loadEventEnd").Float(),
		ActivationStart:       gjson.Get(line, "activationStart").Float(),
	}

	for _, s := range gjson.Get(line, "sources").Array() {
		e.Sources = append(e.Sources, perf.ShiftSource{
			Node:         s.Get("node").String(),
			PreviousRect: parseRect(s.Get("previousRect")),
			CurrentRect:  parseRect(s.Get("currentRect")),
		})
	}
	for _, s := range gjson.Get(line, "scripts").Array() {
		e.Scripts = append(e.Scripts, perf.Script{
			Invoker:                      s.Get("invoker").String(),
			SourceURL:                    s.Get("sourceUrl").String(),
			SourceFunctionName:           s.Get("sourceFunctionName").String(),
			StartTime:                    s.Get("startTime").Float(),
			Duration:                     s.Get("duration").Float(),
			PauseDuration:                s.Get("pauseDuration").Float(),
			ForcedStyleAndLayoutDuration: s.Get("forcedStyleAndLayoutDuration").Float(),
		})
	}
	return e, nil
}

func parseRect(v gjson.Result) perf.Rect {
	return perf.Rect{
		X:      v.Get("x").Float(),
		Y:      v.Get("y").Float(),
		Width:  v.Get("width").Float(),
		Height: v.Get("height").Float(),
	}
}
