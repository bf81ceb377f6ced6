package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/doridoridoriand/pinglog/internal/ping"
)

// ErrInvalidThreshold is returned by ParseThreshold for values that are not
// positive integers.
var ErrInvalidThreshold = errors.New("threshold must be a positive integer")

// DefaultOptions returns baseline settings used before file and flag values.
func DefaultOptions() Options {
	return Options{
		Interval: 1 * time.Second,
		Timeout:  1 * time.Second,
		Prober:   string(ping.KindAuto),
	}
}

// Default returns a configuration with defaults and no target.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{ThresholdMs: DefaultThresholdMs},
		Options: DefaultOptions(),
	}
}

// Load builds the configuration from an optional YAML file at path and the
// overrides. An empty path skips the file.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.applyFile(file)
	}
	cfg.applyOverrides(overrides)
	return cfg, nil
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	return &file, nil
}

// ParseThreshold parses a threshold in milliseconds. A blank value yields
// the default with no error; an invalid one yields the default together with
// ErrInvalidThreshold so the caller can report the fallback.
func ParseThreshold(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultThresholdMs, nil
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return DefaultThresholdMs, errors.Wrapf(ErrInvalidThreshold, "got %q", raw)
	}
	return n, nil
}

// SetThreshold applies raw as the threshold. An invalid value falls back to
// the default and leaves a warning until a later valid value replaces it.
// The parse error is returned so an interactive caller can report it at once.
func (c *Config) SetThreshold(raw string) error {
	n, err := ParseThreshold(raw)
	c.Monitor.ThresholdMs = n
	c.thresholdWarning = ""
	if err != nil {
		c.thresholdWarning = fmt.Sprintf("%v; using default %d ms", err, DefaultThresholdMs)
	}
	return err
}

// DismissThresholdWarning drops the threshold warning once the caller has
// shown it to the operator.
func (c *Config) DismissThresholdWarning() {
	c.thresholdWarning = ""
}

// Warnings lists recoverable problems still in effect.
func (c *Config) Warnings() []string {
	if c.thresholdWarning == "" {
		return nil
	}
	return []string{c.thresholdWarning}
}

// Validate reports configuration that the monitor cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Monitor.Target) == "" {
		return errors.New("target must be specified")
	}
	if strings.TrimSpace(c.Monitor.LogFile) == "" {
		return errors.New("log file must be specified")
	}
	if c.Monitor.ThresholdMs <= 0 {
		return ErrInvalidThreshold
	}
	if c.Options.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.Options.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if _, err := ping.ParseKind(c.Options.Prober); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyFile(file *File) {
	if file.Target != "" {
		c.Monitor.Target = strings.TrimSpace(file.Target)
	}
	if file.LogFile != "" {
		c.Monitor.LogFile = file.LogFile
	}
	if file.ThresholdMs != "" {
		// An invalid value is kept as a warning.
		_ = c.SetThreshold(file.ThresholdMs)
	}
	if file.Comment != "" {
		c.Monitor.Comment = file.Comment
	}
	if file.Interval > 0 {
		c.Options.Interval = file.Interval
	}
	if file.Timeout > 0 {
		c.Options.Timeout = file.Timeout
	}
	if file.Prober != "" {
		c.Options.Prober = file.Prober
	}
	if file.Journal != "" {
		c.Options.Journal = file.Journal
	}
	if file.MetricsListen != "" {
		c.Options.MetricsListen = normalizeListen(file.MetricsListen)
	}
	if file.UI != nil {
		c.Options.UI = *file.UI
	}
}

func (c *Config) applyOverrides(overrides Overrides) {
	if overrides.Target != nil {
		c.Monitor.Target = strings.TrimSpace(*overrides.Target)
	}
	if overrides.LogFile != nil {
		c.Monitor.LogFile = *overrides.LogFile
	}
	if overrides.Threshold != nil {
		_ = c.SetThreshold(*overrides.Threshold)
	}
	if overrides.Comment != nil {
		c.Monitor.Comment = *overrides.Comment
	}
	if overrides.Interval != nil {
		c.Options.Interval = *overrides.Interval
	}
	if overrides.Timeout != nil {
		c.Options.Timeout = *overrides.Timeout
	}
	if overrides.Prober != nil {
		c.Options.Prober = *overrides.Prober
	}
	if overrides.Journal != nil {
		c.Options.Journal = *overrides.Journal
	}
	if overrides.MetricsListen != nil {
		c.Options.MetricsListen = normalizeListen(*overrides.MetricsListen)
	}
	if overrides.UI != nil {
		c.Options.UI = *overrides.UI
	}
}

// A bare port number is shorthand for listening on all interfaces.
func normalizeListen(value string) string {
	if isDigits(value) {
		return ":" + value
	}
	return value
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
