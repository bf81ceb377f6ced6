package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"golang.org/x/sync/errgroup"

	"github.com/doridoridoriand/pinglog/internal/cli"
	"github.com/doridoridoriand/pinglog/internal/config"
	"github.com/doridoridoriand/pinglog/internal/journal"
	eventlog "github.com/doridoridoriand/pinglog/internal/log"
	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/metrics"
	"github.com/doridoridoriand/pinglog/internal/monitor"
	"github.com/doridoridoriand/pinglog/internal/ping"
	"github.com/doridoridoriand/pinglog/internal/state"
	"github.com/doridoridoriand/pinglog/internal/ui"
)

const binName = "pinglog"

// flags holds raw command-line and environment values. Empty strings mean
// the value was not supplied.
type flags struct {
	configFile    *string
	target        *string
	logFile       *string
	threshold     *string
	comment       *string
	interval      *string
	timeout       *string
	prober        *string
	journal       *string
	metricsListen *string
	tui           *bool
	prompt        *bool
	logLevel      *string
	version       *bool
}

func newFlagSet() (*ff.FlagSet, *flags) {
	fs := ff.NewFlagSet(binName)
	f := &flags{
		configFile:    fs.StringLong("config-file", "", "Path to YAML configuration file"),
		target:        fs.StringLong("target", "", "IP address or hostname to ping"),
		logFile:       fs.StringLong("log-file", "", "Path of the event log file"),
		threshold:     fs.StringLong("threshold", "", "High ping threshold in ms (default 100)"),
		comment:       fs.StringLong("comment", "", "Comment written to the log banner"),
		interval:      fs.StringLong("interval", "", "Time between probes (default 1s)"),
		timeout:       fs.StringLong("timeout", "", "Probe timeout (default 1s)"),
		prober:        fs.StringLong("prober", "", "Prober: auto, icmp, udp, exec, probing, probing-udp"),
		journal:       fs.StringLong("journal", "", "Path of an optional SQLite event journal"),
		metricsListen: fs.StringLong("metrics-listen", "", "Prometheus listen address (e.g. :9100)"),
		tui:           fs.BoolLong("tui", "Show the terminal dashboard"),
		prompt:        fs.BoolLong("prompt", "Also prompt for threshold and comment"),
		logLevel: fs.StringEnumLong(
			"log-level",
			"Log level: debug, info, warn, error",
			"info",
			"debug",
			"error",
			"warn",
		),
		version: fs.BoolLong("version", "Print version"),
	}
	return fs, f
}

func parseFlags(args []string) (*ff.FlagSet, *flags, error) {
	fs, f := newFlagSet()
	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(strings.ToUpper(binName)),
	)
	return fs, f, err
}

// buildOverrides turns supplied flag values into config overrides.
func buildOverrides(f *flags) (config.Overrides, error) {
	overrides := config.Overrides{}

	if v := *f.target; v != "" {
		overrides.Target = &v
	}
	if v := *f.logFile; v != "" {
		overrides.LogFile = &v
	}
	if v := *f.threshold; v != "" {
		overrides.Threshold = &v
	}
	if v := *f.comment; v != "" {
		overrides.Comment = &v
	}
	if v := *f.interval; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return overrides, errors.Wrapf(err, "invalid interval %q", v)
		}
		overrides.Interval = &d
	}
	if v := *f.timeout; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return overrides, errors.Wrapf(err, "invalid timeout %q", v)
		}
		overrides.Timeout = &d
	}
	if v := *f.prober; v != "" {
		overrides.Prober = &v
	}
	if v := *f.journal; v != "" {
		overrides.Journal = &v
	}
	if v := *f.metricsListen; v != "" {
		overrides.MetricsListen = &v
	}
	if *f.tui {
		v := true
		overrides.UI = &v
	}

	return overrides, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	slogLevel := new(slog.LevelVar)
	switch level {
	case "debug":
		slogLevel.Set(slog.LevelDebug)
	case "warn":
		slogLevel.Set(slog.LevelWarn)
	case "error":
		slogLevel.Set(slog.LevelError)
	default:
		slogLevel.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel}))
}

// loadConfig resolves the configuration and fills missing values by asking
// on in/out.
func loadConfig(f *flags, in io.Reader, out io.Writer) (*config.Config, error) {
	overrides, err := buildOverrides(f)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(*f.configFile, overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Monitor.Target == "" || cfg.Monitor.LogFile == "" || *f.prompt {
		if err := cli.NewPrompter(in, out).Fill(cfg, *f.prompt); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	fs, f, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *f.version {
		fmt.Printf("%s v%s built on %s\n", binName, version.Version, version.BuildDate)
		return
	}

	logger := newLogger(*f.logLevel, os.Stderr)
	slog.SetDefault(logger)

	cfg, err := loadConfig(f, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn("configuration warning", "warning", warning)
	}

	kind, err := ping.ParseKind(cfg.Options.Prober)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	pinger, err := ping.New(kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create prober: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := run(ctx, cfg, pinger, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the monitor and its optional services and blocks until ctx is
// cancelled or the dashboard is closed.
func run(ctx context.Context, cfg *config.Config, pinger ping.Pinger, logger *slog.Logger) error {
	store := state.NewStore(cfg.Monitor.Target, cfg.Monitor.ThresholdMs)

	var console io.Writer = os.Stdout
	if cfg.Options.UI {
		console = store
	}

	out, err := eventlog.Open(cfg.Monitor.LogFile, console)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error("failed to close log file", "error", err.Error())
		}
	}()
	fmt.Fprintf(console, "Logging to %s\n", out.Path())

	opts := []monitor.Option{
		monitor.WithInterval(cfg.Options.Interval),
		monitor.WithTimeout(cfg.Options.Timeout),
		monitor.WithLogger(logger),
		monitor.WithObserver(monitor.ObserverFunc(func(at time.Time, result ping.Result, _ []loss.Event, s loss.State) {
			store.Update(at, result, s)
		})),
	}

	reg := prometheus.NewRegistry()
	if cfg.Options.MetricsListen != "" {
		opts = append(opts, monitor.WithObserver(metrics.NewRecorder(reg, cfg.Monitor.Target)))
	}

	if cfg.Options.Journal != "" {
		j, err := journal.Open(ctx, cfg.Options.Journal, cfg.Monitor.Target, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, monitor.WithObserver(j))
	}

	m := monitor.New(cfg.Monitor, pinger, out, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx)
	})
	if cfg.Options.MetricsListen != "" {
		logger.Info("serving metrics", "listen", cfg.Options.MetricsListen)
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Options.MetricsListen, reg)
		})
	}
	if cfg.Options.UI {
		dashboard := ui.New(*cfg, store)
		g.Go(func() error {
			return dashboard.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
