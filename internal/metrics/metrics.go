package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

const namespace = "pinglog"

// Recorder turns monitor ticks into Prometheus series.
type Recorder struct {
	probes           *prometheus.CounterVec
	drops            prometheus.Counter
	lossPeriods      prometheus.Counter
	highPings        prometheus.Counter
	inLoss           prometheus.Gauge
	lastRTT          prometheus.Gauge
	currentLossCount prometheus.Gauge
	lastLossDuration prometheus.Gauge
}

// NewRecorder registers the series for target on reg.
func NewRecorder(reg prometheus.Registerer, target string) *Recorder {
	labels := prometheus.Labels{"target": target}
	r := &Recorder{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "probes_total",
			Help:        "Probes sent, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "drops_total",
			Help:        "Probes that got no reply.",
			ConstLabels: labels,
		}),
		lossPeriods: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "loss_periods_total",
			Help:        "Loss periods started.",
			ConstLabels: labels,
		}),
		highPings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "high_pings_total",
			Help:        "Replies slower than the threshold.",
			ConstLabels: labels,
		}),
		inLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "in_loss",
			Help:        "1 while a loss period is open.",
			ConstLabels: labels,
		}),
		lastRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_rtt_ms",
			Help:        "Round trip time of the last successful probe.",
			ConstLabels: labels,
		}),
		currentLossCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "current_loss_count",
			Help:        "Probes lost in the open loss period.",
			ConstLabels: labels,
		}),
		lastLossDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_loss_duration_seconds",
			Help:        "Duration of the most recently ended loss period.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(
		r.probes,
		r.drops,
		r.lossPeriods,
		r.highPings,
		r.inLoss,
		r.lastRTT,
		r.currentLossCount,
		r.lastLossDuration,
	)
	return r
}

// Observe updates the series from one tick.
func (r *Recorder) Observe(at time.Time, result ping.Result, events []loss.Event, state loss.State) {
	if result.Success {
		r.probes.WithLabelValues("success").Inc()
		r.lastRTT.Set(float64(result.RTT) / float64(time.Millisecond))
	} else {
		r.probes.WithLabelValues("failure").Inc()
	}

	for _, e := range events {
		switch e.Kind {
		case loss.KindDrop:
			r.drops.Inc()
		case loss.KindLossStarted:
			r.lossPeriods.Inc()
		case loss.KindLossEnded:
			r.lastLossDuration.Set(e.Duration.Seconds())
		case loss.KindHighPing:
			r.highPings.Inc()
		}
	}

	if period, ok := state.Open(); ok {
		r.inLoss.Set(1)
		r.currentLossCount.Set(float64(period.Count))
		return
	}
	r.inLoss.Set(0)
	r.currentLossCount.Set(0)
}

// Handler returns an http handler that serves the registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server and blocks until context cancellation.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
