package ping

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const echoData = "pinglog"

// ICMPPinger sends ICMP echo requests. In raw mode it needs CAP_NET_RAW; in
// datagram mode it uses the unprivileged ICMP sockets Linux and macOS offer.
type ICMPPinger struct {
	id       int
	seq      uint32
	datagram bool
}

// NewICMPPinger initializes a raw-socket pinger with a process-scoped identifier.
func NewICMPPinger() (*ICMPPinger, error) {
	return &ICMPPinger{id: os.Getpid() & 0xffff}, nil
}

// NewDatagramPinger initializes a pinger on unprivileged ICMP sockets.
func NewDatagramPinger() (*ICMPPinger, error) {
	return &ICMPPinger{id: os.Getpid() & 0xffff, datagram: true}, nil
}

// Ping sends one ICMP echo request and waits for the matching reply.
func (p *ICMPPinger) Ping(ctx context.Context, addr string, timeout time.Duration) Result {
	if err := ctx.Err(); err != nil {
		return Result{Success: false, Error: err}
	}
	ipAddr, ip, err := resolveIP(addr)
	if err != nil {
		return Result{Success: false, Error: err}
	}

	settings := icmpSettings(ip, p.datagram)
	conn, err := icmp.ListenPacket(settings.network, settings.listen)
	if err != nil {
		return Result{Success: false, Error: err}
	}
	defer conn.Close()

	seq := int(atomic.AddUint32(&p.seq, 1) & 0xffff)
	msg := icmp.Message{
		Type: settings.request,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: []byte(echoData),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return Result{Success: false, Error: err}
	}

	if err := conn.SetDeadline(effectiveDeadline(ctx, timeout)); err != nil {
		return Result{Success: false, Error: err}
	}

	var dst net.Addr = ipAddr
	if p.datagram {
		dst = &net.UDPAddr{IP: ip, Zone: ipAddr.Zone}
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return Result{Success: false, Error: err}
	}

	buf := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return Result{Success: false, Error: err}
		}
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return Result{Success: false, Error: fmt.Errorf("ping timeout: %w", err)}
			}
			return Result{Success: false, Error: err}
		}
		if peer == nil {
			continue
		}
		reply, err := icmp.ParseMessage(settings.protocol, buf[:n])
		if err != nil || reply.Type != settings.reply {
			continue
		}
		body, ok := reply.Body.(*icmp.Echo)
		if !ok || !p.matches(body, seq) {
			continue
		}
		return Result{Success: true, RTT: time.Since(start)}
	}
}

// The kernel rewrites the echo ID on datagram sockets, so only seq is compared.
func (p *ICMPPinger) matches(body *icmp.Echo, seq int) bool {
	if body.Seq != seq {
		return false
	}
	return p.datagram || body.ID == p.id
}

type socketSettings struct {
	network  string
	listen   string
	protocol int
	request  icmp.Type
	reply    icmp.Type
}

func resolveIP(addr string) (*net.IPAddr, net.IP, error) {
	ipAddr, err := net.ResolveIPAddr("ip", addr)
	if err != nil {
		return nil, nil, err
	}
	if ipAddr.IP == nil {
		return nil, nil, fmt.Errorf("invalid IP address: %s", addr)
	}
	return ipAddr, ipAddr.IP, nil
}

func icmpSettings(ip net.IP, datagram bool) socketSettings {
	if ip.To4() != nil {
		s := socketSettings{
			network:  "ip4:icmp",
			listen:   "0.0.0.0",
			protocol: ipv4.ICMPTypeEcho.Protocol(),
			request:  ipv4.ICMPTypeEcho,
			reply:    ipv4.ICMPTypeEchoReply,
		}
		if datagram {
			s.network = "udp4"
		}
		return s
	}
	s := socketSettings{
		network:  "ip6:ipv6-icmp",
		listen:   "::",
		protocol: ipv6.ICMPTypeEchoRequest.Protocol(),
		request:  ipv6.ICMPTypeEchoRequest,
		reply:    ipv6.ICMPTypeEchoReply,
	}
	if datagram {
		s.network = "udp6"
	}
	return s
}

func effectiveDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}
