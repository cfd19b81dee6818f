// Package budget evaluates performance budgets against a finished page
// view: assertions like "cls < 0.1" or "inp < 200" that pass or fail the
// replay run.
package budget

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/perfsight/rumbeacon/internal/beacon"
)

// Budget is one performance assertion.
type Budget struct {
	Metric   string  // e.g. "cls", "inp", "lcp"
	Operator string  // "<", "<=", ">", ">=", "=="
	Value    float64
	Raw      string // original string for display
}

// Result is the outcome of evaluating one budget.
type Result struct {
	Budget  Budget
	Actual  float64
	Pass    bool
	Message string
}

// Evaluator checks budgets against a beacon payload.
type Evaluator struct {
	budgets []Budget
}

func NewEvaluator(budgets []Budget) *Evaluator {
	return &Evaluator{budgets: budgets}
}

// Evaluate checks all budgets against the final page view's payload.
// A budget whose metric was never collected fails with a message rather
// than passing silently.
func (e *Evaluator) Evaluate(p *beacon.Payload) []Result {
	if len(e.budgets) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.budgets))
	for _, b := range e.budgets {
		results = append(results, evaluateOne(b, p))
	}
	return results
}

func evaluateOne(b Budget, p *beacon.Payload) Result {
	actual, ok := metricValue(b.Metric, p)
	if !ok {
		return Result{
			Budget:  b,
			Pass:    false,
			Message: fmt.Sprintf("✗ %s: metric not collected", b.Raw),
		}
	}
	pass := compare(actual, b.Operator, b.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Budget:  b,
		Actual:  actual,
		Pass:    pass,
		Message: fmt.Sprintf("%s %s: %.2f %s %.2f", status, b.Raw, actual, b.Operator, b.Value),
	}
}

func metricValue(metric string, p *beacon.Payload) (float64, bool) {
	if p == nil {
		return 0, false
	}
	switch metric {
	case "cls":
		if p.CLS == nil {
			return 0, false
		}
		return p.CLS.Value, true
	case "inp":
		if p.INP == nil {
			return 0, false
		}
		return p.INP.Value, true
	case "fcp":
		if p.FCP == nil {
			return 0, false
		}
		return float64(p.FCP.FirstContentfulPaint), true
	case "lcp":
		if p.LCP == nil {
			return 0, false
		}
		return float64(p.LCP.Value), true
	case "cpu_total":
		if p.CPU == nil {
			return 0, false
		}
		return float64(p.CPU.TotalDuration), true
	case "cpu_longest":
		if p.CPU == nil {
			return 0, false
		}
		return float64(p.CPU.LongestDuration), true
	case "loaf_blocking":
		if p.LoAF == nil {
			return 0, false
		}
		return float64(p.LoAF.TotalBlockingDuration), true
	case "rage_clicks":
		if p.Rage == nil {
			return 0, true // no burst means zero rage clicks
		}
		return float64(p.Rage.Value), true
	}
	return 0, false
}

var budgetPattern = regexp.MustCompile(`^([a-z_]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a budget string.
// Supported formats:
// - "cls < 0.1"           (cumulative layout shift score)
// - "inp < 200"           (interaction latency in ms)
// - "lcp <= 2500"         (largest contentful paint in ms)
// - "rage_clicks == 0"    (rage click burst size)
func Parse(s string) (Budget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Budget{}, fmt.Errorf("empty budget string")
	}
	matches := budgetPattern.FindStringSubmatch(s)
	if matches == nil {
		return Budget{}, fmt.Errorf("invalid budget format: %q (expected: metric operator value, e.g. 'cls < 0.1')", s)
	}
	metric, operator, valueStr := matches[1], matches[2], matches[3]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Budget{}, fmt.Errorf("invalid budget value %q: %v", valueStr, err)
	}
	if !validMetric(metric) {
		return Budget{}, fmt.Errorf("unsupported metric: %q (supported: cls, inp, fcp, lcp, cpu_total, cpu_longest, loaf_blocking, rage_clicks)", metric)
	}
	if !validOperator(operator) {
		return Budget{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}
	return Budget{Metric: metric, Operator: operator, Value: value, Raw: s}, nil
}

// ParseMultiple parses a list of budget strings, failing on the first bad
// one.
func ParseMultiple(raw []string) ([]Budget, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	budgets := make([]Budget, 0, len(raw))
	for _, s := range raw {
		b, err := Parse(s)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

func validMetric(m string) bool {
	switch m {
	case "cls", "inp", "fcp", "lcp", "cpu_total", "cpu_longest", "loaf_blocking", "rage_clicks":
		return true
	}
	return false
}

func validOperator(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==":
		return true
	}
	return false
}

func compare(actual float64, operator string, expected float64) bool {
	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected
	case "==":
		return math.Abs(actual-expected) < 1e-9
	}
	return false
}

// AllPass reports whether every result passed.
func AllPass(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}
