package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/pinglog/internal/config"
	plog "github.com/doridoridoriand/pinglog/internal/log"
	"github.com/doridoridoriand/pinglog/internal/state"
)

const (
	uiRefreshInterval = 500 * time.Millisecond
	statusBoxHeight   = 5
	minLogBoxHeight   = 3
)

// UI renders a TUI view of the monitored target and its recent log lines.
type UI struct {
	cfg   config.Config
	state state.Store
}

// New returns a UI instance.
func New(cfg config.Config, store state.Store) *UI {
	return &UI{cfg: cfg, state: store}
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	u.render(screen, u.state.Snapshot(), time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return context.Canceled
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
			u.render(screen, u.state.Snapshot(), time.Now())
		}
	}
}

func (u *UI) render(screen tcell.Screen, snap state.Snapshot, now time.Time) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < statusBoxHeight+2 {
		screen.Show()
		return
	}

	header := fmt.Sprintf(" pinglog  %s  (q to quit)", now.Format(plog.TimeLayout))
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(screen, 0, 1, width, formatConfigInfo(u.cfg), tcell.StyleDefault.Foreground(tcell.ColorGray))

	y := 2
	drawBox(screen, 0, y, width, statusBoxHeight)
	drawText(screen, 2, y, width-4, fmt.Sprintf(" %s ", snap.Target), tcell.StyleDefault.Bold(true))
	drawStyledText(screen, 1, y+1, width-2, formatStatusLine(width-2, snap))
	drawText(screen, 1, y+2, width-2, formatLossLine(snap, now), statusStyle(snap.Status))
	drawText(screen, 1, y+3, width-2, formatLastProbe(snap), tcell.StyleDefault)
	y += statusBoxHeight

	logHeight := height - y
	if logHeight < minLogBoxHeight {
		screen.Show()
		return
	}
	drawBox(screen, 0, y, width, logHeight)
	drawText(screen, 2, y, width-4, " log ", tcell.StyleDefault.Bold(true))
	lines := tailLines(snap.Lines, logHeight-2)
	for i, line := range lines {
		drawText(screen, 1, y+1+i, width-2, line, lineStyle(line))
	}

	screen.Show()
}

func formatStatusLine(width int, snap state.Snapshot) []styledRune {
	style := statusStyle(snap.Status)
	status := padOrTrim(string(snap.Status), 8)
	rtt := padOrTrim("RTT:"+formatRTT(snap.LastRTT), 12)
	threshold := padOrTrim(fmt.Sprintf("THRESHOLD:%dms", snap.ThresholdMs), 18)

	parts := []styledText{
		{text: status, style: style},
		{text: " ", style: tcell.StyleDefault},
		{text: rtt, style: tcell.StyleDefault},
		{text: " ", style: tcell.StyleDefault},
		{text: threshold, style: tcell.StyleDefault},
		{text: " ", style: tcell.StyleDefault},
	}

	used := 0
	for _, p := range parts {
		used += len([]rune(p.text))
	}
	if barWidth := width - used; barWidth > 0 {
		parts = append(parts, styledText{text: buildBar(snap, barWidth), style: style})
	}
	return flattenStyledText(parts, width)
}

func formatLossLine(snap state.Snapshot, now time.Time) string {
	if snap.Status != state.StatusLoss {
		return "no loss"
	}
	elapsed := now.Sub(snap.LossStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("LOSS since %s  (%s, %d lost)",
		snap.LossStartedAt.Format(plog.TimeLayout), formatDuration(elapsed), snap.LossCount)
}

func formatLastProbe(snap state.Snapshot) string {
	if snap.LastProbeAt.IsZero() {
		return "waiting for first probe"
	}
	return "last probe " + snap.LastProbeAt.Format(plog.TimeLayout)
}

// buildBar scales the last RTT so that the threshold sits at the middle of
// the bar.
func buildBar(snap state.Snapshot, width int) string {
	if width <= 0 {
		return ""
	}
	ms := float64(snap.LastRTT) / float64(time.Millisecond)
	if ms <= 0 || snap.Status == state.StatusLoss {
		return strings.Repeat(" ", width)
	}
	threshold := float64(snap.ThresholdMs)
	if threshold <= 0 {
		threshold = config.DefaultThresholdMs
	}
	units := int(math.Round(ms / threshold * float64(width) / 2))
	if units > width {
		units = width
	}
	if units < 0 {
		units = 0
	}
	return strings.Repeat("#", units) + strings.Repeat(" ", width-units)
}

func tailLines(lines []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func lineStyle(line string) tcell.Style {
	switch {
	case strings.Contains(line, "DROPPED"), strings.Contains(line, "LOSS PERIOD STARTED"):
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	case strings.Contains(line, "ERROR - High ping"):
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case strings.Contains(line, "LOSS PERIOD ENDED"):
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	default:
		return tcell.StyleDefault
	}
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}})
}

type styledText struct {
	text  string
	style tcell.Style
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func flattenStyledText(parts []styledText, width int) []styledRune {
	result := make([]styledRune, 0, len(parts))
	used := 0
	for _, part := range parts {
		runes := []rune(part.text)
		if used+len(runes) > width {
			runes = runes[:maxInt(0, width-used)]
		}
		result = append(result, styledRune{r: runes, style: part.style})
		used += len(runes)
		if used >= width {
			break
		}
	}
	return result
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func formatRTT(rtt time.Duration) string {
	if rtt <= 0 {
		return "-"
	}
	if rtt < time.Millisecond {
		return fmt.Sprintf("%dus", rtt.Microseconds())
	}
	if rtt < time.Second {
		return fmt.Sprintf("%dms", rtt.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", rtt.Seconds())
}

func statusStyle(status state.Status) tcell.Style {
	switch status {
	case state.StatusUp:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case state.StatusSlow:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case state.StatusLoss:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func formatConfigInfo(cfg config.Config) string {
	info := fmt.Sprintf(" interval=%s  timeout=%s  prober=%s  log=%s",
		formatDuration(cfg.Options.Interval), formatDuration(cfg.Options.Timeout),
		cfg.Options.Prober, cfg.Monitor.LogFile)
	if cfg.Monitor.Comment != "" {
		info += "  comment=" + cfg.Monitor.Comment
	}
	return info
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
