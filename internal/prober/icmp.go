package prober

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"pingmonitor/internal/models"
)

// ICMP sends one echo request with pro-bing.
type ICMP struct {
	// Privileged selects raw sockets; otherwise unprivileged datagram ICMP is used.
	Privileged bool
	// Source optionally pins the local address.
	Source string
}

// Probe implements Prober.
func (p *ICMP) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pinger, err := probing.NewPinger(addr.String())
	if err != nil {
		return failure(ErrTransport, "create pinger for %s: %v", addr, err)
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.Privileged)
	if p.Source != "" {
		pinger.Source = p.Source
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return contextFailure(ctx, addr)
		}
		if errors.Is(err, os.ErrPermission) {
			return failure(ErrTransport, "icmp to %s not permitted: %v", addr, err)
		}
		return failure(ErrTransport, "icmp to %s: %v", addr, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return failure(ErrTimeout, "no echo reply from %s within %s", addr, timeout)
	}
	rtt := stats.AvgRtt
	if len(stats.Rtts) > 0 {
		rtt = stats.Rtts[0]
	}
	return success(rtt)
}
