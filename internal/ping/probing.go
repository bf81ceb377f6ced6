package ping

import (
	"context"
	"errors"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ErrNoReply is returned in a Result when the echo request went unanswered.
var ErrNoReply = errors.New("no echo reply received")

// ProbingPinger sends one echo request through pro-bing.
type ProbingPinger struct {
	privileged bool
}

// NewProbingPinger returns a pro-bing backed pinger. Unprivileged mode uses
// datagram ICMP sockets.
func NewProbingPinger(privileged bool) *ProbingPinger {
	return &ProbingPinger{privileged: privileged}
}

// Ping runs a single-packet pro-bing session bounded by timeout.
func (p *ProbingPinger) Ping(ctx context.Context, addr string, timeout time.Duration) Result {
	if err := ctx.Err(); err != nil {
		return Result{Success: false, Error: err}
	}
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return Result{Success: false, Error: err}
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return Result{Success: false, Error: err}
	}
	stats := pinger.Statistics()
	if stats == nil || stats.PacketsRecv == 0 {
		return Result{Success: false, Error: ErrNoReply}
	}
	rtt := stats.AvgRtt
	if len(stats.Rtts) > 0 {
		rtt = stats.Rtts[0]
	}
	return Result{Success: true, RTT: rtt}
}
