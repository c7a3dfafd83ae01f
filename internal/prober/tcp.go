package prober

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"

	"pingmonitor/internal/models"
)

// DefaultTCPPort is dialled when no port is configured.
const DefaultTCPPort = 443

// TCP probes by opening a TCP connection. A refused connection still proves
// the host answered, so it counts as reachable.
type TCP struct {
	Port int
}

// Probe implements Prober.
func (p *TCP) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	port := p.Port
	if port <= 0 {
		port = DefaultTCPPort
	}
	address := net.JoinHostPort(addr.String(), strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	started := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp4", address)
	rtt := time.Since(started)

	if err == nil {
		_ = conn.Close()
		return success(rtt)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return success(rtt)
	}
	if ctx.Err() != nil {
		return contextFailure(ctx, addr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure(ErrTimeout, "connect %s: %v", address, err)
	}
	return failure(ErrTransport, "connect %s: %v", address, err)
}
