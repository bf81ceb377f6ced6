package ping

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

var rttPatterns = []*regexp.Regexp{
	regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`),
	regexp.MustCompile(`round-trip min/avg/max(?:/stddev)? = [0-9.]+/([0-9.]+)/`),
}

// ExternalPinger invokes the system ping command for environments without
// raw socket access.
type ExternalPinger struct {
	command string
}

// NewExternalPinger returns a ping implementation that shells out to ping.
func NewExternalPinger() *ExternalPinger {
	return &ExternalPinger{command: "ping"}
}

// Ping runs the system ping command once and parses the RTT from its output.
// A non-zero exit status, including "host unknown", is a failed probe.
func (p *ExternalPinger) Ping(ctx context.Context, addr string, timeout time.Duration) Result {
	cmd := exec.CommandContext(ctx, p.command, pingArgs(runtime.GOOS, addr, timeout)...)
	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Success: false, Error: fmt.Errorf("external ping aborted: %w", ctxErr)}
		}
		return Result{Success: false, Error: fmt.Errorf("external ping failed: %w", err)}
	}
	rtt := parseRTT(out)
	if rtt == 0 {
		rtt = time.Since(start)
	}
	return Result{Success: true, RTT: rtt}
}

func pingArgs(goos string, addr string, timeout time.Duration) []string {
	switch goos {
	case "windows":
		timeoutMs := maxInt(1, int(timeout.Milliseconds()))
		return []string{"-n", "1", "-w", strconv.Itoa(timeoutMs), addr}
	case "darwin":
		timeoutMs := maxInt(100, int(timeout.Milliseconds()))
		return []string{"-n", "-c", "1", "-W", strconv.Itoa(timeoutMs), addr}
	default:
		timeoutSec := maxInt(1, int(timeout.Seconds()+0.5))
		return []string{"-n", "-c", "1", "-W", strconv.Itoa(timeoutSec), addr}
	}
}

func parseRTT(output []byte) time.Duration {
	for _, pattern := range rttPatterns {
		matches := pattern.FindSubmatch(output)
		if len(matches) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(string(matches[1]), 64)
		if err != nil {
			continue
		}
		return time.Duration(value * float64(time.Millisecond))
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
