// Package output renders the end-of-replay summary: what was replayed,
// what was sent, and the metric values of the final page view.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/perfsight/rumbeacon/internal/beacon"
	"github.com/perfsight/rumbeacon/internal/budget"
	"github.com/perfsight/rumbeacon/internal/eventlog"
)

// Summary is the result of one replay run.
type Summary struct {
	CustomerID     string `json:"customer_id"`
	SessionID      string `json:"session_id"`
	SessionResumed bool   `json:"session_resumed"`
	Sampled        bool   `json:"sampled"`

	Records   int `json:"records"`
	Entries   int `json:"entries"`
	Commands  int `json:"commands"`
	PageViews int `json:"page_views"`

	// Beacon counts by kind.
	Beacons map[string]int `json:"beacons"`

	// Final page view's payload, when one was sent.
	LastPayload *beacon.Payload `json:"last_payload,omitempty"`

	// Performance budget outcomes.
	Budgets []budget.Result `json:"budgets,omitempty"`

	// Diagnostic event counts by code.
	Events map[string]int `json:"events,omitempty"`
}

// CountEvents folds the diagnostic log into the summary.
func (s *Summary) CountEvents(log *eventlog.Log) {
	names := map[eventlog.Code]string{
		eventlog.SessionNotSampled:         "session_not_sampled",
		eventlog.MainBeaconSent:            "main_beacon_sent",
		eventlog.SupplementaryBeaconSent:   "supplementary_beacon_sent",
		eventlog.InteractionBeaconSent:     "interaction_beacon_sent",
		eventlog.CustomDataBeaconSent:      "custom_data_beacon_sent",
		eventlog.PostBeaconSent:            "post_beacon_sent",
		eventlog.PostBeaconBlocked:         "post_beacon_blocked",
		eventlog.PostBeaconRetried:         "post_beacon_retried",
		eventlog.SendFailed:                "send_failed",
		eventlog.EntryTypeUnsupported:      "entry_type_unsupported",
		eventlog.PageLabelEvaluationFailed: "page_label_evaluation_failed",
		eventlog.ErrorReported:             "error_reported",
		eventlog.MaxMeasureTimeout:         "max_measure_timeout",
		eventlog.CommandReplayed:           "command_replayed",
	}
	s.Events = make(map[string]int)
	for code, name := range names {
		if n := log.Count(code); n > 0 {
			s.Events[name] = n
		}
	}
}

// PrintReport outputs a human-readable summary.
func PrintReport(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n--- Replay Results ---")
	fmt.Fprintf(w, "Customer:          %s\n", s.CustomerID)
	fmt.Fprintf(w, "Session:           %s (resumed=%t, sampled=%t)\n", s.SessionID, s.SessionResumed, s.Sampled)
	fmt.Fprintf(w, "Records:           %d\n", s.Records)
	fmt.Fprintf(w, "Entries:           %d\n", s.Entries)
	fmt.Fprintf(w, "Commands:          %d\n", s.Commands)
	fmt.Fprintf(w, "Page Views:        %d\n", s.PageViews)

	if len(s.Beacons) > 0 {
		fmt.Fprintln(w, "\nBeacons:")
		kinds := make([]string, 0, len(s.Beacons))
		for kind := range s.Beacons {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %-16s %d\n", kind+":", s.Beacons[kind])
		}
	}

	if p := s.LastPayload; p != nil {
		fmt.Fprintln(w, "\nFinal Page View:")
		fmt.Fprintf(w, "  Page ID:         %s\n", p.PageID)
		fmt.Fprintf(w, "  Label:           %s\n", p.PageLabel)
		fmt.Fprintf(w, "  Flags:           %d\n", p.Flags)
		if p.CLS != nil {
			fmt.Fprintf(w, "  CLS:             %.3f\n", p.CLS.Value)
		}
		if p.INP != nil {
			fmt.Fprintf(w, "  INP:             %.0fms (interactions=%d)\n", p.INP.Value, p.INP.InteractionCount)
		}
		if p.FCP != nil {
			fmt.Fprintf(w, "  FCP:             %dms\n", p.FCP.FirstContentfulPaint)
		}
		if p.LCP != nil {
			fmt.Fprintf(w, "  LCP:             %dms", p.LCP.Value)
			if p.LCP.ResourceLoadDelay != nil && p.LCP.ResourceLoadTime != nil && p.LCP.ElementRenderDelay != nil {
				fmt.Fprintf(w, " (loadDelay=%d, loadTime=%d, renderDelay=%d)",
					*p.LCP.ResourceLoadDelay, *p.LCP.ResourceLoadTime, *p.LCP.ElementRenderDelay)
			}
			fmt.Fprintln(w)
		}
		if p.CPU != nil {
			fmt.Fprintf(w, "  Long Tasks:      count=%d total=%dms median=%dms longest=%dms\n",
				p.CPU.Count, p.CPU.TotalDuration, p.CPU.MedianDuration, p.CPU.LongestDuration)
		}
		if p.LoAF != nil {
			fmt.Fprintf(w, "  LoAF:            entries=%d duration=%dms blocking=%dms\n",
				p.LoAF.TotalEntries, p.LoAF.TotalDuration, p.LoAF.TotalBlockingDuration)
		}
		if p.Rage != nil {
			fmt.Fprintf(w, "  Rage Clicks:     %d on %s\n", p.Rage.Value, p.Rage.Selector)
		}
	}

	if len(s.Budgets) > 0 {
		fmt.Fprintln(w, "\nBudgets:")
		for _, r := range s.Budgets {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}

	if len(s.Events) > 0 {
		fmt.Fprintln(w, "\nDiagnostics:")
		names := make([]string, 0, len(s.Events))
		for name := range s.Events {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Events[name])
		}
	}
}

// PrintJSONReport outputs the summary as indented JSON.
func PrintJSONReport(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
