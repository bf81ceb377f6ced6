// Package monitor runs the probe, classify, log and sleep loop against a
// single target.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/doridoridoriand/pinglog/internal/config"
	plog "github.com/doridoridoriand/pinglog/internal/log"
	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

const (
	// DefaultInterval is the pause after each tick.
	DefaultInterval = 1 * time.Second
	// DefaultTimeout bounds a single probe.
	DefaultTimeout = 1 * time.Second
)

// LineWriter receives formatted event lines.
type LineWriter interface {
	Lines(lines ...string) error
}

// Observer is told about every tick after its lines have been written.
type Observer interface {
	Observe(at time.Time, result ping.Result, events []loss.Event, state loss.State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(at time.Time, result ping.Result, events []loss.Event, state loss.State)

// Observe calls f.
func (f ObserverFunc) Observe(at time.Time, result ping.Result, events []loss.Event, state loss.State) {
	f(at, result, events, state)
}

// Monitor probes one target forever. It owns its tracker and writer; nothing
// else touches them while Run is active.
type Monitor struct {
	cfg       config.MonitorConfig
	pinger    ping.Pinger
	out       LineWriter
	clock     clock.Clock
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	observers []Observer
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithInterval sets the pause between ticks.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers an observer. Observers run in registration order on
// the loop goroutine.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// New returns a monitor for cfg.
func New(cfg config.MonitorConfig, pinger ping.Pinger, out LineWriter, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		pinger:   pinger,
		out:      out,
		clock:    clock.New(),
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.ThresholdMs <= 0 {
		m.cfg.ThresholdMs = config.DefaultThresholdMs
	}
	return m
}

// Run writes the banner and then probes until ctx is cancelled. The stopped
// line is written on every exit path, panics included. A loss period still
// open at that point is not closed in the log.
func (m *Monitor) Run(ctx context.Context) error {
	m.write(plog.BannerLines(plog.Banner{
		Target:      m.cfg.Target,
		ThresholdMs: float64(m.cfg.ThresholdMs),
		Comment:     m.cfg.Comment,
		StartedAt:   m.clock.Now(),
	})...)

	tracker := loss.NewTracker(float64(m.cfg.ThresholdMs))
	defer m.shutdown(tracker)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.tick(ctx, tracker)
		if err := m.sleep(ctx); err != nil {
			return err
		}
	}
}

func (m *Monitor) tick(ctx context.Context, tracker *loss.Tracker) {
	result := m.probe(ctx)
	now := m.clock.Now()
	if !result.Success {
		m.logger.Debug("probe failed", "target", m.cfg.Target, "error", errString(result.Error))
	}

	events := tracker.Observe(result.Outcome(), now)
	for _, e := range events {
		m.write(plog.EventLines(e, m.cfg.Target)...)
	}

	state := tracker.State()
	for _, o := range m.observers {
		o.Observe(now, result, events, state)
	}
}

// An in-flight probe is never preempted by cancellation; only its own
// timeout bounds it.
func (m *Monitor) probe(ctx context.Context) ping.Result {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	return m.pinger.Ping(probeCtx, m.cfg.Target, m.timeout)
}

func (m *Monitor) sleep(ctx context.Context) error {
	timer := m.clock.Timer(m.interval)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Monitor) shutdown(tracker *loss.Tracker) {
	if period, ok := tracker.State().Open(); ok {
		m.logger.Warn("stopped during a loss period; it is not recorded as ended",
			"target", m.cfg.Target,
			"loss_started", period.Start.Format(time.RFC3339),
			"pings_lost", period.Count,
		)
	}
	m.write(plog.StoppedLine(m.clock.Now()))
}

func (m *Monitor) write(lines ...string) {
	if err := m.out.Lines(lines...); err != nil {
		m.logger.Error("failed to write log lines", "error", err.Error())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
