package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pinglog.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func strPtr(s string) *string { return &s }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.ThresholdMs != DefaultThresholdMs {
		t.Fatalf("expected default threshold, got %d", cfg.Monitor.ThresholdMs)
	}
	if cfg.Options.Interval != time.Second || cfg.Options.Timeout != time.Second {
		t.Fatalf("unexpected timing defaults %+v", cfg.Options)
	}
	if cfg.Options.Prober != "auto" {
		t.Fatalf("expected auto prober, got %q", cfg.Options.Prober)
	}
}

func TestLoadFileAndOverrides(t *testing.T) {
	path := writeConfig(t, `
target: 1.1.1.1
log_file: /var/log/pinglog.log
threshold_ms: 250
comment: "upstairs router"
interval: 2s
timeout: 500ms
prober: exec
journal: events.db
metrics_listen: "9100"
ui: true
`)
	interval := 3 * time.Second
	cfg, err := Load(path, Overrides{
		Target:   strPtr(" 8.8.8.8 "),
		Interval: &interval,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Monitor.Target != "8.8.8.8" {
		t.Fatalf("expected override target, got %q", cfg.Monitor.Target)
	}
	if cfg.Monitor.LogFile != "/var/log/pinglog.log" {
		t.Fatalf("unexpected log file %q", cfg.Monitor.LogFile)
	}
	if cfg.Monitor.ThresholdMs != 250 {
		t.Fatalf("expected threshold 250, got %d", cfg.Monitor.ThresholdMs)
	}
	if cfg.Monitor.Comment != "upstairs router" {
		t.Fatalf("unexpected comment %q", cfg.Monitor.Comment)
	}
	if cfg.Options.Interval != interval {
		t.Fatalf("expected override interval, got %v", cfg.Options.Interval)
	}
	if cfg.Options.Timeout != 500*time.Millisecond {
		t.Fatalf("expected file timeout, got %v", cfg.Options.Timeout)
	}
	if cfg.Options.Prober != "exec" || cfg.Options.Journal != "events.db" {
		t.Fatalf("unexpected options %+v", cfg.Options)
	}
	if cfg.Options.MetricsListen != ":9100" {
		t.Fatalf("expected normalized listen address, got %q", cfg.Options.MetricsListen)
	}
	if !cfg.Options.UI {
		t.Fatalf("expected UI enabled from file")
	}
	if len(cfg.Warnings()) != 0 {
		t.Fatalf("unexpected warnings %v", cfg.Warnings())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml"), Overrides{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "target: [unterminated\n")
	if _, err := Load(path, Overrides{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInvalidThresholdFallsBackToDefault(t *testing.T) {
	cfg, err := Load("", Overrides{Threshold: strPtr("fast")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.ThresholdMs != DefaultThresholdMs {
		t.Fatalf("expected default threshold, got %d", cfg.Monitor.ThresholdMs)
	}
	if len(cfg.Warnings()) != 1 {
		t.Fatalf("expected one warning, got %v", cfg.Warnings())
	}
}

func TestValidThresholdOverrideClearsFileWarning(t *testing.T) {
	path := writeConfig(t, "threshold_ms: slow\n")

	cfg, err := Load(path, Overrides{Threshold: strPtr("120")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.ThresholdMs != 120 {
		t.Fatalf("expected override threshold, got %d", cfg.Monitor.ThresholdMs)
	}
	if len(cfg.Warnings()) != 0 {
		t.Fatalf("expected no warnings after a valid override, got %v", cfg.Warnings())
	}
}

func TestInvalidThresholdOverrideKeepsOneWarning(t *testing.T) {
	path := writeConfig(t, "threshold_ms: slow\n")

	cfg, err := Load(path, Overrides{Threshold: strPtr("-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.ThresholdMs != DefaultThresholdMs {
		t.Fatalf("expected default threshold, got %d", cfg.Monitor.ThresholdMs)
	}
	if len(cfg.Warnings()) != 1 || !strings.Contains(cfg.Warnings()[0], `"-1"`) {
		t.Fatalf("expected a single warning for the override, got %v", cfg.Warnings())
	}
}

func TestDismissThresholdWarning(t *testing.T) {
	cfg := Default()
	if err := cfg.SetThreshold("abc"); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	cfg.DismissThresholdWarning()
	if len(cfg.Warnings()) != 0 {
		t.Fatalf("expected no warnings, got %v", cfg.Warnings())
	}
	if cfg.Monitor.ThresholdMs != DefaultThresholdMs {
		t.Fatalf("expected default threshold, got %d", cfg.Monitor.ThresholdMs)
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		invalid  bool
	}{
		{"", DefaultThresholdMs, false},
		{"   ", DefaultThresholdMs, false},
		{"150", 150, false},
		{" 42 ", 42, false},
		{"0", DefaultThresholdMs, true},
		{"-5", DefaultThresholdMs, true},
		{"12.5", DefaultThresholdMs, true},
		{"abc", DefaultThresholdMs, true},
	}
	for _, tt := range tests {
		got, err := ParseThreshold(tt.raw)
		if got != tt.expected {
			t.Fatalf("ParseThreshold(%q) = %d, expected %d", tt.raw, got, tt.expected)
		}
		if tt.invalid != errors.Is(err, ErrInvalidThreshold) {
			t.Fatalf("ParseThreshold(%q) error = %v, invalid %v", tt.raw, err, tt.invalid)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Monitor.Target = "example.com"
		cfg.Monitor.LogFile = "ping.log"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty target", func(c *Config) { c.Monitor.Target = " " }, true},
		{"empty log file", func(c *Config) { c.Monitor.LogFile = "" }, true},
		{"zero threshold", func(c *Config) { c.Monitor.ThresholdMs = 0 }, true},
		{"zero interval", func(c *Config) { c.Options.Interval = 0 }, true},
		{"negative timeout", func(c *Config) { c.Options.Timeout = -time.Second }, true},
		{"unknown prober", func(c *Config) { c.Options.Prober = "smoke-signals" }, true},
		{"blank prober", func(c *Config) { c.Options.Prober = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeListen(t *testing.T) {
	tests := map[string]string{
		"9100":           ":9100",
		":9100":          ":9100",
		"localhost:9100": "localhost:9100",
		"":               "",
	}
	for in, expected := range tests {
		if got := normalizeListen(in); got != expected {
			t.Fatalf("normalizeListen(%q) = %q, expected %q", in, got, expected)
		}
	}
}
