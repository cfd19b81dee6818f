package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults mirror the browser library's shipping configuration.
const (
	defaultScriptVersion     = "1.0.0"
	defaultMaxURLLength      = 2000
	defaultMaxUserTimings    = 20
	defaultMaxElementTimings = 20
	defaultMaxInteractions   = 10
	defaultMaxErrorReports   = 5
	defaultMaxMeasureTime    = 60 * time.Second
	defaultCustomDataDelay   = 100 * time.Millisecond
)

// Loader handles loading configuration from files and command-line
// arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Flags override file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := cfgViper.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.CustomerID = strings.TrimSpace(cfg.CustomerID)
	cfg.BeaconURL = strings.TrimSpace(cfg.BeaconURL)
	cfg.PostBeaconURL = strings.TrimSpace(cfg.PostBeaconURL)
	cfg.FallbackBeaconURL = strings.TrimSpace(cfg.FallbackBeaconURL)
	cfg.TraceFile = strings.TrimSpace(cfg.TraceFile)

	return cfg, nil
}

// Default returns a Config with the shipping defaults applied.
func Default() *Config {
	return &Config{
		ScriptVersion:     defaultScriptVersion,
		MaxURLLength:      defaultMaxURLLength,
		MaxUserTimings:    defaultMaxUserTimings,
		MaxElementTimings: defaultMaxElementTimings,
		MaxInteractions:   defaultMaxInteractions,
		MaxErrorReports:   defaultMaxErrorReports,
		SampleRate:        100,
		SessionTimeout:    30 * time.Minute,
		SendOnHidden:      true,
		MaxMeasureTime:    defaultMaxMeasureTime,
		CustomDataDelay:   defaultCustomDataDelay,
		Tracing:           TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}
