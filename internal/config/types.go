package config

import "time"

// DefaultThresholdMs is the high-ping threshold used when none is supplied
// or the supplied one is invalid.
const DefaultThresholdMs = 100

// MonitorConfig is fixed for the lifetime of a run.
type MonitorConfig struct {
	Target      string
	LogFile     string
	ThresholdMs int
	Comment     string
}

// Options holds runtime settings around the monitor loop.
type Options struct {
	Interval      time.Duration
	Timeout       time.Duration
	Prober        string
	Journal       string
	MetricsListen string
	UI            bool
}

// Config is the fully resolved configuration.
type Config struct {
	Monitor MonitorConfig
	Options Options

	// thresholdWarning is set while the threshold in use is a fallback for
	// an invalid value.
	thresholdWarning string
}

// File mirrors the YAML configuration file.
type File struct {
	Target        string        `yaml:"target"`
	LogFile       string        `yaml:"log_file"`
	ThresholdMs   string        `yaml:"threshold_ms"`
	Comment       string        `yaml:"comment"`
	Interval      time.Duration `yaml:"interval"`
	Timeout       time.Duration `yaml:"timeout"`
	Prober        string        `yaml:"prober"`
	Journal       string        `yaml:"journal"`
	MetricsListen string        `yaml:"metrics_listen"`
	UI            *bool         `yaml:"ui"`
}

// Overrides holds optional values from flags and environment that take
// precedence over the config file.
type Overrides struct {
	Target        *string
	LogFile       *string
	Threshold     *string
	Comment       *string
	Interval      *time.Duration
	Timeout       *time.Duration
	Prober        *string
	Journal       *string
	MetricsListen *string
	UI            *bool
}
