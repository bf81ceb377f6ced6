// Package ping sends single reachability probes to a host.
package ping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doridoridoriand/pinglog/internal/loss"
)

// Result captures a single ping result. A failed probe is a Result with
// Success false, never a panic.
type Result struct {
	RTT     time.Duration
	Success bool
	Error   error
}

// Outcome converts r into a tracker outcome with the latency in ms.
func (r Result) Outcome() loss.Outcome {
	if !r.Success {
		return loss.Failed()
	}
	return loss.Succeeded(float64(r.RTT) / float64(time.Millisecond))
}

// Pinger sends a single ping and returns the result.
type Pinger interface {
	Ping(ctx context.Context, addr string, timeout time.Duration) Result
}

// Kind names a Pinger implementation.
type Kind string

const (
	KindAuto    Kind = "auto"
	KindICMP    Kind = "icmp"
	KindUDP     Kind = "udp"
	KindExec    Kind = "exec"
	KindProbing Kind = "probing"

	// KindProbingUDP runs pro-bing on unprivileged datagram sockets.
	KindProbingUDP Kind = "probing-udp"
)

// Kinds lists every accepted Kind, default first.
func Kinds() []Kind {
	return []Kind{KindAuto, KindICMP, KindUDP, KindExec, KindProbing, KindProbingUDP}
}

// ParseKind validates a prober name.
func ParseKind(value string) (Kind, error) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return KindAuto, nil
	}
	for _, k := range Kinds() {
		if k == normalized {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown prober %q", value)
}

// New builds the Pinger for kind. KindAuto tries raw ICMP and falls back to
// the system ping command when raw sockets are not permitted.
func New(kind Kind) (Pinger, error) {
	switch kind {
	case KindAuto, "":
		icmpPinger, err := NewICMPPinger()
		if err != nil {
			return NewExternalPinger(), nil
		}
		return NewFallbackPinger(icmpPinger, NewExternalPinger()), nil
	case KindICMP:
		return NewICMPPinger()
	case KindUDP:
		return NewDatagramPinger()
	case KindExec:
		return NewExternalPinger(), nil
	case KindProbing:
		return NewProbingPinger(true), nil
	case KindProbingUDP:
		return NewProbingPinger(false), nil
	default:
		return nil, fmt.Errorf("unknown prober %q", kind)
	}
}
