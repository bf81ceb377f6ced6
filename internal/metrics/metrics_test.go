package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func feed(r *Recorder, tracker *loss.Tracker, results ...ping.Result) {
	for i, result := range results {
		at := t0.Add(time.Duration(i) * time.Second)
		events := tracker.Observe(result.Outcome(), at)
		r.Observe(at, result, events, tracker.State())
	}
}

func TestRecorderCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, "192.0.2.1")
	tracker := loss.NewTracker(100)

	failure := ping.Result{Success: false, Error: errors.New("timeout")}
	feed(r, tracker,
		failure,
		failure,
		ping.Result{Success: true, RTT: 150 * time.Millisecond},
		ping.Result{Success: true, RTT: 20 * time.Millisecond},
	)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.drops))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lossPeriods))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.highPings))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.probes.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.probes.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inLoss))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.lastRTT))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lastLossDuration))
}

func TestRecorderTracksOpenPeriod(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, "192.0.2.1")
	tracker := loss.NewTracker(100)

	failure := ping.Result{Success: false}
	feed(r, tracker, failure, failure, failure)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.inLoss))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.currentLossCount))
}

func TestHandlerExposesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, "example.com")
	feed(r, loss.NewTracker(100), ping.Result{Success: false})

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `pinglog_drops_total{target="example.com"} 1`)
	assert.Contains(t, text, `pinglog_in_loss{target="example.com"} 1`)
	assert.True(t, strings.Contains(text, "# HELP pinglog_loss_periods_total"))
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, prometheus.NewRegistry()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServeReportsListenError(t *testing.T) {
	err := Serve(context.Background(), "256.0.0.1:bad", prometheus.NewRegistry())
	assert.Error(t, err)
}
