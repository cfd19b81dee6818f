package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config drives one rumbeacon run: which customer the beacons belong to,
// where they go, how metrics are bounded, and how the trace is replayed.
type Config struct {
	CustomerID     string `mapstructure:"customer_id"`
	ScriptVersion  string `mapstructure:"script_version"`
	SnippetVersion string `mapstructure:"snippet_version"`

	BeaconURL         string `mapstructure:"beacon_url"`          // GET endpoint
	PostBeaconURL     string `mapstructure:"post_beacon_url"`     // POST endpoint
	FallbackBeaconURL string `mapstructure:"fallback_beacon_url"` // POST retry endpoint on policy block
	ErrorBeaconURL    string `mapstructure:"error_beacon_url"`    // side-channel error reports

	MaxURLLength        int `mapstructure:"max_url_length"`
	MaxUserTimings      int `mapstructure:"max_user_timings"`
	MaxElementTimings   int `mapstructure:"max_element_timings"`
	MaxInteractions     int `mapstructure:"max_interactions"`
	MaxAttributionNodes int `mapstructure:"max_attribution_nodes"`
	MaxErrorReports     int `mapstructure:"max_error_reports"`

	SampleRate     int           `mapstructure:"sample_rate"` // percent, 0-100
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	SessionFile    string        `mapstructure:"session_file"` // file-backed store; empty = in-memory

	SPAMode         bool          `mapstructure:"spa_mode"`
	SendOnHidden    bool          `mapstructure:"send_on_hidden"`
	MinMeasureTime  time.Duration `mapstructure:"min_measure_time"`
	MaxMeasureTime  time.Duration `mapstructure:"max_measure_time"`
	CustomDataDelay time.Duration `mapstructure:"custom_data_delay"` // debounce for delta beacons
	PageLabel       string        `mapstructure:"page_label"`

	Budgets []string `mapstructure:"budgets"` // performance assertions, e.g. "cls < 0.1"

	TraceFile  string  `mapstructure:"trace_file"`
	ReplayRate float64 `mapstructure:"replay_rate"` // trace records per second; 0 = as fast as possible
	DryRun     bool    `mapstructure:"dry_run"`     // print beacons instead of transmitting
	JSONOutput bool    `mapstructure:"json_output"`

	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

// TracingConfig configures OTel span export for beacon sends.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether span export is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// beacon requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// ValidationError aggregates every problem found in a config.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.CustomerID) == "" {
		issues = append(issues, "customer_id is required")
	}
	if strings.TrimSpace(c.BeaconURL) == "" && strings.TrimSpace(c.PostBeaconURL) == "" && !c.DryRun {
		issues = append(issues, "beacon_url or post_beacon_url is required unless dry_run is set")
	}
	for _, u := range []struct{ name, value string }{
		{"beacon_url", c.BeaconURL},
		{"post_beacon_url", c.PostBeaconURL},
		{"fallback_beacon_url", c.FallbackBeaconURL},
		{"error_beacon_url", c.ErrorBeaconURL},
	} {
		if strings.TrimSpace(u.value) == "" {
			continue
		}
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			issues = append(issues, fmt.Sprintf("%s is not an absolute URL", u.name))
		}
	}

	if c.SampleRate < 0 || c.SampleRate > 100 {
		issues = append(issues, "sample_rate must be between 0 and 100")
	}
	if c.MaxURLLength < 0 {
		issues = append(issues, "max_url_length must be >= 0")
	}
	if c.MaxUserTimings < 0 {
		issues = append(issues, "max_user_timings must be >= 0")
	}
	if c.MaxElementTimings < 0 {
		issues = append(issues, "max_element_timings must be >= 0")
	}
	if c.MaxInteractions < 0 {
		issues = append(issues, "max_interactions must be >= 0")
	}
	if c.MaxErrorReports < 0 {
		issues = append(issues, "max_error_reports must be >= 0")
	}
	if c.SessionTimeout < 0 {
		issues = append(issues, "session_timeout must be >= 0")
	}
	if c.MinMeasureTime < 0 {
		issues = append(issues, "min_measure_time must be >= 0")
	}
	if c.MaxMeasureTime < 0 {
		issues = append(issues, "max_measure_time must be >= 0")
	}
	if c.MaxMeasureTime > 0 && c.MinMeasureTime > c.MaxMeasureTime {
		issues = append(issues, "min_measure_time must not exceed max_measure_time")
	}
	if c.ReplayRate < 0 {
		issues = append(issues, "replay_rate must be >= 0")
	}

	if c.Tracing.Enabled() {
		switch strings.ToLower(c.Tracing.Protocol) {
		case "", "grpc", "http":
		default:
			issues = append(issues, fmt.Sprintf("tracing.protocol %q is not supported", c.Tracing.Protocol))
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
			issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
