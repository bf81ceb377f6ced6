package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/pinglog/internal/config"
	"github.com/doridoridoriand/pinglog/internal/state"
)

func styledRunesToString(parts []styledRune) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(string(part.r))
	}
	return b.String()
}

func screenRow(screen tcell.Screen, y, width int) string {
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func TestFormatStatusLineShowsStatusRTTAndThreshold(t *testing.T) {
	snap := state.Snapshot{
		Target:      "192.0.2.10",
		ThresholdMs: 100,
		Status:      state.StatusSlow,
		LastRTT:     150 * time.Millisecond,
	}

	line := styledRunesToString(formatStatusLine(80, snap))
	if len([]rune(line)) != 80 {
		t.Fatalf("expected line of width 80, got %d: %q", len([]rune(line)), line)
	}
	for _, want := range []string{"SLOW", "RTT:150ms", "THRESHOLD:100ms", "#"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestFormatLossLine(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	snap := state.Snapshot{Status: state.StatusLoss, LossStartedAt: started, LossCount: 4}

	got := formatLossLine(snap, started.Add(4*time.Second))
	if got != "LOSS since 2024-05-01 10:00:00  (4.0s, 4 lost)" {
		t.Fatalf("unexpected loss line %q", got)
	}

	if got := formatLossLine(state.Snapshot{Status: state.StatusUp}, started); got != "no loss" {
		t.Fatalf("unexpected idle line %q", got)
	}
}

func TestFormatLastProbe(t *testing.T) {
	if got := formatLastProbe(state.Snapshot{}); got != "waiting for first probe" {
		t.Fatalf("unexpected %q", got)
	}
	at := time.Date(2024, 5, 1, 10, 0, 1, 0, time.Local)
	if got := formatLastProbe(state.Snapshot{LastProbeAt: at}); got != "last probe 2024-05-01 10:00:01" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTailLines(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	if got := tailLines(lines, 2); strings.Join(got, ",") != "c,d" {
		t.Fatalf("unexpected tail %v", got)
	}
	if got := tailLines(lines, 10); len(got) != 4 {
		t.Fatalf("unexpected tail %v", got)
	}
	if got := tailLines(lines, 0); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestLineStyle(t *testing.T) {
	red := tcell.StyleDefault.Foreground(tcell.ColorRed)
	if lineStyle("2024-05-01 10:00:00: Ping to h DROPPED.") != red {
		t.Fatalf("drop lines should be red")
	}
	yellow := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	if lineStyle("2024-05-01 10:00:00: ERROR - High ping of 180 ms to h (Threshold: 100 ms).") != yellow {
		t.Fatalf("high ping lines should be yellow")
	}
	if lineStyle("High ping threshold: 100 ms") != tcell.StyleDefault {
		t.Fatalf("the banner threshold line should use the default style")
	}
	if lineStyle("Script stopped at: x") != tcell.StyleDefault {
		t.Fatalf("plain lines should use the default style")
	}
}

func TestFormatConfigInfo(t *testing.T) {
	cfg := *config.Default()
	cfg.Monitor.LogFile = "ping.log"
	cfg.Monitor.Comment = "uplink"

	got := formatConfigInfo(cfg)
	for _, want := range []string{"interval=1.0s", "timeout=1.0s", "prober=auto", "log=ping.log", "comment=uplink"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestRenderDrawsTargetAndLog(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 20)

	store := state.NewStore("192.0.2.10", 100)
	_, _ = store.Write([]byte("2024-05-01 10:00:00: Ping to 192.0.2.10 DROPPED.\n"))

	u := New(*config.Default(), store)
	u.render(screen, store.Snapshot(), time.Date(2024, 5, 1, 10, 0, 5, 0, time.Local))

	if row := screenRow(screen, 0, 80); !strings.Contains(row, "pinglog  2024-05-01 10:00:05") {
		t.Fatalf("unexpected header %q", row)
	}
	if row := screenRow(screen, 2, 80); !strings.Contains(row, "192.0.2.10") {
		t.Fatalf("expected target in box title, got %q", row)
	}
	if row := screenRow(screen, 3, 80); !strings.Contains(row, "UNKNOWN") {
		t.Fatalf("expected status line, got %q", row)
	}
	if row := screenRow(screen, 8, 80); !strings.Contains(row, "DROPPED") {
		t.Fatalf("expected log line, got %q", row)
	}
}

func TestRenderSkipsTinyScreens(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(10, 3)

	u := New(*config.Default(), state.NewStore("host", 100))
	u.render(screen, state.Snapshot{Target: "host"}, time.Now())

	if row := screenRow(screen, 0, 10); strings.TrimSpace(row) != "" {
		t.Fatalf("expected blank screen, got %q", row)
	}
}
