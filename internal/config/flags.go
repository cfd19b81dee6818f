package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rumbeacon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Identity flags
	flags.String("customer-id", "", "Customer identifier stamped on every beacon")
	flags.String("script-version", defaultScriptVersion, "Reported script version")

	// Endpoint flags
	flags.String("beacon-url", "", "GET beacon endpoint URL")
	flags.String("post-beacon-url", "", "POST beacon endpoint URL")
	flags.String("fallback-beacon-url", "", "Fallback POST endpoint used after a policy block")
	flags.String("error-beacon-url", "", "Side-channel endpoint for error reports")

	// Bounding flags
	flags.Int("max-url-length", defaultMaxURLLength, "Maximum serialized GET beacon URL length")
	flags.Int("max-user-timings", defaultMaxUserTimings, "Maximum user-timing entries per beacon")
	flags.Int("max-element-timings", defaultMaxElementTimings, "Maximum element-timing entries per beacon")
	flags.Int("max-interactions", defaultMaxInteractions, "Maximum interaction entries per beacon")
	flags.Int("max-error-reports", defaultMaxErrorReports, "Maximum error reports per page view")

	// Session and sampling flags
	flags.Int("sample-rate", 100, "Percentage of sessions to sample (0-100)")
	flags.Duration("session-timeout", 30*time.Minute, "Sliding session expiry")
	flags.String("session-file", "", "Path to file-backed session store (default: in-memory)")

	// Page-view lifecycle flags
	flags.Bool("spa", false, "Enable SPA soft-navigation semantics")
	flags.Bool("send-on-hidden", true, "Send the beacon when the page becomes hidden")
	flags.Duration("min-measure-time", 0, "Minimum collection window before a load-triggered send")
	flags.Duration("max-measure-time", defaultMaxMeasureTime, "Maximum collection window before a forced send")
	flags.String("page-label", "", "Static page label; overrides the default label source")

	// Replay flags
	flags.String("trace", "", "Path to session trace file (JSON lines)")
	flags.StringSlice("budget", nil, "Performance budget, e.g. 'cls < 0.1' (repeatable)")
	flags.Float64("replay-rate", 0, "Trace records per second (0 = no pacing)")
	flags.Bool("dry-run", false, "Print beacons instead of transmitting them")
	flags.Bool("json-output", false, "Emit JSON formatted summary output")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for beacon-send spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Float64("tracing-sample-rate", 1.0, "Tracing sample rate (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Skip TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"customer-id":         &cfg.CustomerID,
		"script-version":      &cfg.ScriptVersion,
		"beacon-url":          &cfg.BeaconURL,
		"post-beacon-url":     &cfg.PostBeaconURL,
		"fallback-beacon-url": &cfg.FallbackBeaconURL,
		"error-beacon-url":    &cfg.ErrorBeaconURL,
		"session-file":        &cfg.SessionFile,
		"page-label":          &cfg.PageLabel,
		"trace":               &cfg.TraceFile,
		"tracing-endpoint":    &cfg.Tracing.Endpoint,
		"tracing-protocol":    &cfg.Tracing.Protocol,
	}
	for name, dst := range stringFlags {
		if fs.Changed(name) {
			val, err := fs.GetString(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	intFlags := map[string]*int{
		"max-url-length":      &cfg.MaxURLLength,
		"max-user-timings":    &cfg.MaxUserTimings,
		"max-element-timings": &cfg.MaxElementTimings,
		"max-interactions":    &cfg.MaxInteractions,
		"max-error-reports":   &cfg.MaxErrorReports,
		"sample-rate":         &cfg.SampleRate,
	}
	for name, dst := range intFlags {
		if fs.Changed(name) {
			val, err := fs.GetInt(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	durationFlags := map[string]*time.Duration{
		"session-timeout":  &cfg.SessionTimeout,
		"min-measure-time": &cfg.MinMeasureTime,
		"max-measure-time": &cfg.MaxMeasureTime,
	}
	for name, dst := range durationFlags {
		if fs.Changed(name) {
			val, err := fs.GetDuration(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	boolFlags := map[string]*bool{
		"spa":              &cfg.SPAMode,
		"send-on-hidden":   &cfg.SendOnHidden,
		"dry-run":          &cfg.DryRun,
		"json-output":      &cfg.JSONOutput,
		"tracing-insecure": &cfg.Tracing.Insecure,
	}
	for name, dst := range boolFlags {
		if fs.Changed(name) {
			val, err := fs.GetBool(name)
			if err != nil {
				return err
			}
			*dst = val
		}
	}

	if fs.Changed("budget") {
		val, err := fs.GetStringSlice("budget")
		if err != nil {
			return err
		}
		cfg.Budgets = val
	}
	if fs.Changed("replay-rate") {
		val, err := fs.GetFloat64("replay-rate")
		if err != nil {
			return err
		}
		cfg.ReplayRate = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}
