// Package log formats monitor events as text lines and appends them to the
// log file and the console.
package log

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/doridoridoriand/pinglog/internal/loss"
)

// TimeLayout is the timestamp layout used in every log line.
const TimeLayout = "2006-01-02 15:04:05"

// Separator bounds the startup banner.
var Separator = strings.Repeat("=", 50)

// Banner describes the run being started.
type Banner struct {
	Target      string
	ThresholdMs float64
	Comment     string
	StartedAt   time.Time
}

// Timestamp formats t in local time.
func Timestamp(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// BannerLines returns the startup banner lines. The comment line is omitted
// when the comment is blank.
func BannerLines(b Banner) []string {
	lines := []string{
		Separator,
		fmt.Sprintf("Starting pings to %s - %s", b.Target, Timestamp(b.StartedAt)),
		fmt.Sprintf("High ping threshold: %s ms", Millis(b.ThresholdMs)),
	}
	if comment := strings.TrimSpace(b.Comment); comment != "" {
		lines = append(lines, "Comment: "+comment)
	}
	return append(lines, Separator, "")
}

// EventLines returns the lines recording e for target.
func EventLines(e loss.Event, target string) []string {
	ts := Timestamp(e.At)
	switch e.Kind {
	case loss.KindDrop:
		return []string{fmt.Sprintf("%s: Ping to %s DROPPED.", ts, target)}
	case loss.KindLossStarted:
		return []string{ts + ": --- LOSS PERIOD STARTED ---"}
	case loss.KindLossEnded:
		return []string{
			ts + ": +++ LOSS PERIOD ENDED +++",
			fmt.Sprintf("    Duration (seconds): %.2f", e.Duration.Seconds()),
			fmt.Sprintf("    Total pings lost   : %d", e.Count),
			"",
		}
	case loss.KindHighPing:
		return []string{fmt.Sprintf("%s: ERROR - High ping of %s ms to %s (Threshold: %s ms).",
			ts, Millis(e.LatencyMs), target, Millis(e.ThresholdMs))}
	default:
		return nil
	}
}

// StoppedLine returns the shutdown line.
func StoppedLine(t time.Time) string {
	return "Script stopped at: " + Timestamp(t)
}

// Millis renders a millisecond value rounded to two decimals without
// trailing zeros, so 150 prints as "150" and 12.346 as "12.35".
func Millis(ms float64) string {
	rounded := math.Round(ms*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
